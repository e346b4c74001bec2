package advisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/cache"
	"github.com/KhangChau12/scholarship-advisor/internal/config"
	"github.com/KhangChau12/scholarship-advisor/internal/currency"
	"github.com/KhangChau12/scholarship-advisor/internal/docext"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/notify"
	"github.com/KhangChau12/scholarship-advisor/internal/pace"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
	"github.com/KhangChau12/scholarship-advisor/internal/search"
	"github.com/KhangChau12/scholarship-advisor/stages/advice"
	"github.com/KhangChau12/scholarship-advisor/stages/finance"
	"github.com/KhangChau12/scholarship-advisor/stages/intake"
	"github.com/KhangChau12/scholarship-advisor/stages/profile"
	"github.com/KhangChau12/scholarship-advisor/stages/scholarships"
)

type adviseCommandOptions struct {
	configPath    string
	documentPaths []string
	email         string
	modelOverride string
	retries       int
	timeout       time.Duration
	deadline      time.Duration
}

func newAdviseCommand() *cobra.Command {
	options := &adviseCommandOptions{configPath: defaultConfigPath}

	command := &cobra.Command{
		Use:   adviseCommandUse,
		Short: adviseCommandShort,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdviseCommand(cmd, *options, args)
		},
	}

	command.Flags().StringVar(&options.configPath, configFlagName, defaultConfigPath, configFlagUsage)
	command.Flags().StringArrayVar(&options.documentPaths, fileFlagName, nil, fileFlagUsage)
	command.Flags().StringVar(&options.email, emailFlagName, "", emailFlagUsage)
	command.Flags().StringVar(&options.modelOverride, modelFlagName, "", modelFlagUsage)
	command.Flags().IntVar(&options.retries, retriesFlagName, 0, retriesFlagUsage)
	command.Flags().DurationVar(&options.timeout, timeoutFlagName, 0, timeoutFlagUsage)
	command.Flags().DurationVar(&options.deadline, deadlineFlagName, 0, deadlineFlagUsage)

	return command
}

func runAdviseCommand(command *cobra.Command, options adviseCommandOptions, args []string) error {
	_ = godotenv.Load()

	requestText := strings.TrimSpace(strings.Join(args, " "))
	if requestText == "" {
		return errors.New(emptyRequestErrorMessage)
	}

	rootConfiguration, configurationErr := loadRootConfiguration(options.configPath)
	if configurationErr != nil {
		return configurationErr
	}

	logger, loggerErr := buildLogger(rootConfiguration.Common.Logging.Level, rootConfiguration.Common.Logging.Format)
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	completer, completerErr := buildCompleter(rootConfiguration, options, logger)
	if completerErr != nil {
		return completerErr
	}

	documentText, extractErr := extractDocuments(options.documentPaths)
	if extractErr != nil {
		return extractErr
	}

	sharedCache := completer.Cache
	pipelineStages, stagesErr := buildStages(rootConfiguration, stageDependencies{
		structured:   llm.Structured{Completer: completer},
		webSearcher:  buildSearchClient(rootConfiguration, sharedCache, logger),
		rater:        buildCurrencyClient(rootConfiguration, sharedCache, logger),
		mailer:       buildMailer(rootConfiguration, logger),
		logger:       logger,
		requestText:  requestText,
		documentText: documentText,
		email:        strings.TrimSpace(options.email),
	}, options.modelOverride)
	if stagesErr != nil {
		return stagesErr
	}

	orchestrator, orchestratorErr := pipeline.New(logger, pipelineStages...)
	if orchestratorErr != nil {
		return orchestratorErr
	}

	deadline := options.deadline
	if deadline <= 0 {
		deadline = time.Duration(rootConfiguration.Common.Defaults.DeadlineSeconds) * time.Second
	}
	if deadline <= 0 {
		deadline = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(command.Context(), deadline)
	defer cancel()

	report, runErr := orchestrator.Run(runCtx)
	if runErr != nil {
		return runErr
	}
	return renderReport(command.OutOrStdout(), report)
}

func buildCompleter(rootConfiguration config.Root, options adviseCommandOptions, logger *zap.Logger) (llm.Completer, error) {
	defaultModel, _ := rootConfiguration.DefaultModel()
	modelName := strings.TrimSpace(options.modelOverride)
	if modelName != "" {
		overridden, found := rootConfiguration.FindModel(modelName)
		if !found {
			return llm.Completer{}, fmt.Errorf(unknownModelErrorFormat, modelName)
		}
		defaultModel = overridden
	}

	apiKeyEnvironmentVariable := strings.TrimSpace(rootConfiguration.Common.API.APIKeyEnv)
	if apiKeyEnvironmentVariable == "" {
		apiKeyEnvironmentVariable = defaultAPIKeyEnvironmentVariable
	}
	apiKey := strings.TrimSpace(os.Getenv(apiKeyEnvironmentVariable))
	if apiKey == "" {
		return llm.Completer{}, fmt.Errorf(missingAPIKeyErrorFormat, apiKeyEnvironmentVariable)
	}

	apiEndpoint := strings.TrimSpace(rootConfiguration.Common.API.Endpoint)
	if apiEndpoint == "" {
		apiEndpoint = defaultAPIEndpoint
	}

	timeout := options.timeout
	if timeout <= 0 {
		timeout = time.Duration(rootConfiguration.Common.Defaults.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	retries := options.retries
	if retries <= 0 {
		retries = rootConfiguration.Common.Defaults.Retries
	}

	paceInterval := time.Duration(rootConfiguration.Common.Defaults.PaceIntervalMillis) * time.Millisecond
	if paceInterval <= 0 {
		paceInterval = time.Second
	}
	cacheTTL := time.Duration(rootConfiguration.Common.Defaults.CacheTTLSeconds) * time.Second

	return llm.Completer{
		Client: llm.Client{
			HTTPBaseURL: apiEndpoint,
			APIKey:      apiKey,
			HTTPClient:  &http.Client{Timeout: timeout},
		},
		Pacer:               pace.New(paceInterval),
		Cache:               cache.New(cacheTTL),
		DefaultModel:        defaultModel.ModelID,
		DefaultTemperature:  defaultModel.DefaultTemperature,
		SupportsTemperature: defaultModel.SupportsTemperature,
		DefaultMaxTokens:    defaultModel.MaxCompletionTokens,
		MaxAttempts:         retries,
		Logger:              logger,
	}, nil
}

func buildSearchClient(rootConfiguration config.Root, sharedCache *cache.Cache, logger *zap.Logger) search.Client {
	return search.Client{
		HTTPBaseURL: rootConfiguration.Common.Search.Endpoint,
		APIKey:      strings.TrimSpace(os.Getenv(rootConfiguration.Common.Search.APIKeyEnv)),
		Language:    rootConfiguration.Common.Search.Language,
		Country:     rootConfiguration.Common.Search.Country,
		Cache:       sharedCache,
		Logger:      logger,
	}
}

func buildCurrencyClient(rootConfiguration config.Root, sharedCache *cache.Cache, logger *zap.Logger) currency.Client {
	return currency.Client{
		HTTPBaseURL: rootConfiguration.Common.Currency.Endpoint,
		APIKey:      strings.TrimSpace(os.Getenv(rootConfiguration.Common.Currency.APIKeyEnv)),
		Cache:       sharedCache,
		Logger:      logger,
	}
}

// buildMailer returns nil when no delivery key is configured; the advice
// stage treats a nil mailer as notifications disabled.
func buildMailer(rootConfiguration config.Root, logger *zap.Logger) notify.Mailer {
	apiKey := strings.TrimSpace(os.Getenv(rootConfiguration.Common.Email.APIKeyEnv))
	if apiKey == "" {
		return nil
	}
	return notify.SendGridMailer{
		APIKey:      apiKey,
		FromAddress: rootConfiguration.Common.Email.FromAddress,
		FromName:    rootConfiguration.Common.Email.FromName,
		Logger:      logger,
	}
}

func extractDocuments(documentPaths []string) (string, error) {
	if len(documentPaths) == 0 {
		return "", nil
	}
	extractor := docext.NewExtractor()
	var builder strings.Builder
	for _, documentPath := range documentPaths {
		text, err := extractor.Extract(documentPath)
		if err != nil {
			return "", fmt.Errorf(extractDocumentErrorFormat, documentPath, err)
		}
		fmt.Fprintf(&builder, "--- %s ---\n%s\n\n", filepath.Base(documentPath), strings.TrimSpace(text))
	}
	return strings.TrimSpace(builder.String()), nil
}

type stageDependencies struct {
	structured   llm.Structured
	webSearcher  search.Client
	rater        currency.Client
	mailer       notify.Mailer
	logger       *zap.Logger
	requestText  string
	documentText string
	email        string
}

// buildStages assembles the enabled stages in pipeline order, each with its
// decoded config body and resolved model.
func buildStages(rootConfiguration config.Root, deps stageDependencies, modelOverride string) ([]pipeline.Stage, error) {
	var pipelineStages []pipeline.Stage

	if rootConfiguration.StageEnabled(intake.StageName) {
		var settings intake.Settings
		modelID, err := stageSettings(rootConfiguration, intake.StageName, modelOverride, &settings)
		if err != nil {
			return nil, err
		}
		settings.Model = modelID
		pipelineStages = append(pipelineStages, intake.New(deps.structured, settings, deps.requestText, deps.documentText))
	}
	if rootConfiguration.StageEnabled(scholarships.StageName) {
		var settings scholarships.Settings
		modelID, err := stageSettings(rootConfiguration, scholarships.StageName, modelOverride, &settings)
		if err != nil {
			return nil, err
		}
		settings.Model = modelID
		pipelineStages = append(pipelineStages, scholarships.New(deps.structured, deps.webSearcher, settings, deps.logger))
	}
	if rootConfiguration.StageEnabled(profile.StageName) {
		var settings profile.Settings
		modelID, err := stageSettings(rootConfiguration, profile.StageName, modelOverride, &settings)
		if err != nil {
			return nil, err
		}
		settings.Model = modelID
		pipelineStages = append(pipelineStages, profile.New(deps.structured, settings, deps.documentText))
	}
	if rootConfiguration.StageEnabled(finance.StageName) {
		var settings finance.Settings
		modelID, err := stageSettings(rootConfiguration, finance.StageName, modelOverride, &settings)
		if err != nil {
			return nil, err
		}
		settings.Model = modelID
		pipelineStages = append(pipelineStages, finance.New(deps.structured, deps.webSearcher, deps.rater, settings, deps.logger))
	}
	if rootConfiguration.StageEnabled(advice.StageName) {
		var settings advice.Settings
		modelID, err := stageSettings(rootConfiguration, advice.StageName, modelOverride, &settings)
		if err != nil {
			return nil, err
		}
		settings.Model = modelID
		pipelineStages = append(pipelineStages, advice.New(deps.structured, deps.mailer, deps.email, settings, deps.logger, nil))
	}

	return pipelineStages, nil
}

// stageSettings decodes the stage's config body into target and resolves the
// model to use: the CLI override wins, then the stage's configured model,
// then the default model. An empty return means the transport default.
func stageSettings(rootConfiguration config.Root, stageName string, modelOverride string, target any) (string, error) {
	stageConfiguration, found := rootConfiguration.FindStage(stageName)
	if found {
		if err := stageConfiguration.DecodeBody(target); err != nil {
			return "", fmt.Errorf(stageSettingsErrorFormat, stageName, err)
		}
	}

	modelName := strings.TrimSpace(modelOverride)
	if modelName == "" {
		modelName = strings.TrimSpace(stageConfiguration.Model)
	}
	if modelName == "" {
		return "", nil
	}
	modelConfiguration, modelFound := rootConfiguration.FindModel(modelName)
	if !modelFound {
		return "", fmt.Errorf(unknownModelErrorFormat, modelName)
	}
	return modelConfiguration.ModelID, nil
}

func renderReport(writer io.Writer, report pipeline.Report) error {
	if _, err := fmt.Fprintf(writer, "run %s\n", report.RunID); err != nil {
		return err
	}
	for _, stageName := range report.Results.Stages() {
		result, _ := report.Results.Result(stageName)
		if _, err := fmt.Fprintf(writer, "\n[%s] %s (confidence=%s)\n", result.Stage, result.Status, result.Confidence); err != nil {
			return err
		}
		if result.Reason != "" {
			if _, err := fmt.Fprintf(writer, "  reason: %s\n", result.Reason); err != nil {
				return err
			}
		}
		if err := renderStageValue(writer, result.Stage, result.Value); err != nil {
			return err
		}
	}
	if len(report.Degraded) > 0 {
		if _, err := fmt.Fprintf(writer, "\nwarning: degraded stages: %s\n", strings.Join(report.Degraded, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func renderStageValue(writer io.Writer, stageName string, value map[string]any) error {
	switch stageName {
	case advice.StageName:
		summary, _ := value["executive_summary"].(string)
		if summary != "" {
			if _, err := fmt.Fprintf(writer, "  %s\n", summary); err != nil {
				return err
			}
		}
		prioritized, _ := value["prioritized_scholarships"].([]any)
		for itemIndex, rawItem := range prioritized {
			item, _ := rawItem.(map[string]any)
			name, _ := item["name"].(string)
			priority, _ := item["priority"].(string)
			if _, err := fmt.Fprintf(writer, "  %d. %s [%s]\n", itemIndex+1, name, priority); err != nil {
				return err
			}
		}
	case scholarships.StageName:
		found, _ := value["total_found"].(float64)
		if _, err := fmt.Fprintf(writer, "  %d scholarships found\n", int(found)); err != nil {
			return err
		}
	}
	return nil
}
