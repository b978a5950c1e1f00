package main

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/state/db"
	"github.com/govm-net/counter/types"
	"github.com/govm-net/counter/vm"
)

const (
	envPrefix = "COUNTER"

	configKey     = "config"
	dbPathKey     = "db-path"
	codeDirKey    = "code-dir"
	accountKey    = "account"
	logLevelKey   = "log-level"
	logFileKey    = "log-file"
	logMaxSizeKey = "log-max-size"
	devKey        = "dev"
)

func addFlags(fs *pflag.FlagSet) {
	fs.String(configKey, "", "Config file (yaml, json or toml)")
	fs.String(dbPathKey, "./counter.db", "SQLite database holding global state")
	fs.String(codeDirKey, "", "Directory to keep contract code in; empty keeps it in state")
	fs.String(accountKey, vm.DefaultAccountAddr.String(), "Account hash executing requests")
	fs.String(logLevelKey, "info", "Log level (debug, info, warn, error)")
	fs.String(logFileKey, "", "Also write logs to this file, rotated")
	fs.Int(logMaxSizeKey, 10, "Maximum log file size in megabytes before rotation")
	fs.Bool(devKey, false, "Human readable console logs")
}

// getViper layers flags over COUNTER_* environment variables over the config file.
func getViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	if path := v.GetString(configKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}
	return v, nil
}

// newLogger builds the logger. The returned closer releases the log file and is
// nil when logging goes to stderr only.
func newLogger(v *viper.Viper) (*zap.Logger, io.Closer, error) {
	level, err := zapcore.ParseLevel(v.GetString(logLevelKey))
	if err != nil {
		return nil, nil, err
	}

	var consoleEnc zapcore.Encoder
	if v.GetBool(devKey) {
		consoleEnc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		consoleEnc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level)}

	var closer io.Closer
	if path := v.GetString(logFileKey); path != "" {
		rw := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    v.GetInt(logMaxSizeKey), // megabytes
			MaxBackups: 3,
			Compress:   true,
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(rw), level))
		closer = rw
	}
	return zap.New(zapcore.NewTee(cores...)), closer, nil
}

func engineConfig(v *viper.Viper) *vm.Config {
	config := vm.DefaultConfig()
	config.StateType = state.DBType
	config.StateParams = map[string]any{db.ParamDBPath: v.GetString(dbPathKey)}
	config.CodeDir = v.GetString(codeDirKey)
	return config
}

func account(v *viper.Viper) (types.AccountHash, error) {
	var hash types.AccountHash
	if err := hash.UnmarshalText([]byte(v.GetString(accountKey))); err != nil {
		return hash, errors.Wrap(err, "invalid account")
	}
	return hash, nil
}
