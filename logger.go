package main

import (
	"os"

	"github.com/fansqz/go-jdwp/config"
	"github.com/sirupsen/logrus"
)

var logFile *os.File

// SetupLogger 设置日志级别、格式和输出文件，没有指定文件时输出到标准错误
func SetupLogger(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.LogFile == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	// 打开文件
	logFile, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logrus.SetOutput(logFile)
	return nil
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
