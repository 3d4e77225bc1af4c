package config

const (
	defaultStateFile           = "~/.local/share/curator/state.json"
	defaultKnowledgeBaseDir    = "~/knowledge-base"
	defaultCacheDir            = "~/.local/share/curator/cache"
	defaultLogDir              = "~/.local/share/curator/logs"
	defaultIndexFile           = "~/.local/share/curator/index.db"
	defaultLogLevel            = "info"
	defaultLogFormat           = "auto"
	defaultLLMSlots            = 2
	defaultNetworkSlots        = 4
	defaultDBSlots             = 1
	defaultPhaseSeconds        = 20
	defaultProgressBuffer      = 64
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds   = 60
	defaultFetchUserAgent      = "curator/dev"
	defaultFetchRequestTimeout = 30
	defaultGitRemote           = "origin"
	defaultGitBranch           = "main"
	defaultGitAuthorName       = "curator"
	defaultGitAuthorEmail      = "curator@localhost"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateFile:        defaultStateFile,
			KnowledgeBaseDir: defaultKnowledgeBaseDir,
			CacheDir:         defaultCacheDir,
			LogDir:           defaultLogDir,
			IndexFile:        defaultIndexFile,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Workflow: Workflow{
			LLMSlots:            defaultLLMSlots,
			NetworkSlots:        defaultNetworkSlots,
			DBSlots:             defaultDBSlots,
			DefaultPhaseSeconds: defaultPhaseSeconds,
			ProgressBuffer:      defaultProgressBuffer,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Fetch: Fetch{
			UserAgent:      defaultFetchUserAgent,
			RequestTimeout: defaultFetchRequestTimeout,
		},
		Git: Git{
			RemoteName:  defaultGitRemote,
			Branch:      defaultGitBranch,
			AuthorName:  defaultGitAuthorName,
			AuthorEmail: defaultGitAuthorEmail,
		},
	}
}
