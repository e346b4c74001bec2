package advisor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/KhangChau12/scholarship-advisor/internal/config"
)

func loadRootConfiguration(configurationPath string) (config.Root, error) {
	resolver, resolverErr := config.NewResolver()
	if resolverErr != nil {
		return config.Root{}, fmt.Errorf(configurationLoaderInitializationErrorFormat, resolverErr)
	}
	configurationSource, sourceErr := resolver.Resolve(configurationPath)
	if sourceErr != nil {
		return config.Root{}, fmt.Errorf(configurationSourceResolutionErrorFormat, sourceErr)
	}
	rootConfiguration, loadErr := config.LoadRoot(configurationSource)
	if loadErr != nil {
		return config.Root{}, fmt.Errorf(rootConfigurationLoadErrorFormat, configurationSource.Reference, loadErr)
	}
	return rootConfiguration, nil
}

func buildLogger(level string, format string) (*zap.Logger, error) {
	loggerConfiguration := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		loggerConfiguration = zap.NewDevelopmentConfig()
	}
	if trimmedLevel := strings.TrimSpace(level); trimmedLevel != "" {
		parsedLevel, parseErr := zapcore.ParseLevel(trimmedLevel)
		if parseErr == nil {
			loggerConfiguration.Level = zap.NewAtomicLevelAt(parsedLevel)
		}
	}
	return loggerConfiguration.Build()
}
