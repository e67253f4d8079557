package aichef

// Supported completion backends, selected through CHEF_BACKEND.
const (
	BackendGroq      = "groq"
	BackendBedrock   = "bedrock"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
	BackendMock      = "mock"
)

// ModelConfig selects the completion backend. An empty ModelID picks the backend's default model.
type ModelConfig struct {
	Backend     string  `env:"CHEF_BACKEND,default=groq"`
	ModelID     string  `env:"MODEL_ID"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=2048"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	UsageCeiling       int    `env:"USAGE_CEILING,default=30000"`
	MinPantryItems     int    `env:"MIN_PANTRY_ITEMS,default=5"`
	RequirePartySize   bool   `env:"REQUIRE_PARTY_SIZE,default=true"`
	ReplyLanguage      string `env:"REPLY_LANGUAGE,default=Italian"`
	GroqBaseURL        string `env:"GROQ_BASE_URL,default=https://api.groq.com/openai/v1"`
	BaseOllamaEndpoint string `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	SeedPantryPath     string `env:"SEED_PANTRY_PATH"`
	SeedS3Bucket       string `env:"SEED_S3_BUCKET"`
	SeedS3Key          string `env:"SEED_S3_KEY"`
	SlackWebhookURL    string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel       string `env:"SLACK_CHANNEL,default=#kitchen"`
	TurnLogDir         string `env:"TURN_LOG_DIR"`
}

// RequiresCredential reports whether the backend needs an API key supplied by the user.
// Bedrock resolves AWS credentials from the environment; Ollama and the mock need none.
func (mc ModelConfig) RequiresCredential() bool {
	switch mc.Backend {
	case BackendGroq, BackendAnthropic, BackendGemini:
		return true
	default:
		return false
	}
}
