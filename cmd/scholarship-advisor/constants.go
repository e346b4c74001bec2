package advisor

const (
	rootCommandUse   = "scholarship-advisor"
	rootCommandShort = "Structured scholarship advisory pipeline for Vietnamese students"

	adviseCommandUse   = "advise [REQUEST TEXT]"
	adviseCommandShort = "Run the advisory pipeline for a student request"

	stagesCommandUse   = "stages"
	stagesCommandShort = "List pipeline stages from config.yaml (enabled by default)"

	configFlagName    = "config"
	configFlagUsage   = "Path to unified config.yaml"
	fileFlagName      = "file"
	fileFlagUsage     = "Profile document to extract (.txt, .md, .pdf); repeatable"
	emailFlagName     = "email"
	emailFlagUsage    = "Email the final summary to this address (best effort)"
	modelFlagName     = "model"
	modelFlagUsage    = "Override every stage's model by name (must exist in models[])"
	retriesFlagName   = "retries"
	retriesFlagUsage  = "Max completion attempts per call (0 = use defaults)"
	timeoutFlagName   = "timeout"
	timeoutFlagUsage  = "Per-request HTTP timeout (e.g., 45s; 0 = use defaults)"
	deadlineFlagName  = "deadline"
	deadlineFlagUsage = "Whole-run deadline (e.g., 5m; 0 = use defaults)"
	allFlagName       = "all"
	allFlagUsage      = "Show disabled stages as well"

	defaultConfigPath = "./config.yaml"

	enabledStateLabel  = "enabled"
	disabledStateLabel = "disabled"
	dashPlaceholder    = "-"

	defaultAPIEndpoint               = "https://api.together.xyz/v1"
	defaultAPIKeyEnvironmentVariable = "TOGETHER_API_KEY"

	configurationLoaderInitializationErrorFormat = "initialize configuration loader: %w"
	configurationSourceResolutionErrorFormat     = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat             = "load root configuration %s: %w"
	emptyRequestErrorMessage                     = "provide the student's request as arguments"
	missingAPIKeyErrorFormat                     = "missing API key: set %s"
	unknownModelErrorFormat                      = "model %q not found in models[]"
	extractDocumentErrorFormat                   = "extract document %s: %w"
	stageSettingsErrorFormat                     = "stage %s settings: %w"
)
