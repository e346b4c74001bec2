package main

import (
	"os"

	"go.uber.org/zap"

	advisor "github.com/KhangChau12/scholarship-advisor/cmd/scholarship-advisor"
)

func main() {
	logger := zap.Must(zap.NewProduction())

	executionErr := advisor.Execute()
	if executionErr != nil {
		logger.Error("command execution failed", zap.Error(executionErr))
		_ = logger.Sync()
		os.Exit(1)
	}

	syncErr := logger.Sync()
	if syncErr != nil {
		os.Exit(1)
	}
}
