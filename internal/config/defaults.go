package config

const (
	defaultWorkDir              = "~/.local/share/subline/work"
	defaultOutputDir            = "~/subline/output"
	defaultLogDir               = "~/.local/share/subline/logs"
	defaultStateDir             = "~/.local/share/subline/state"
	defaultEngine               = EngineWhisperX
	defaultModelVariant         = "base"
	defaultChunkLength          = 30
	defaultVADMethod            = "silero"
	defaultTargetLanguage       = "English"
	defaultPrimaryTranslator    = ProviderLLM
	defaultFallbackTranslator   = ProviderMyMemory
	defaultTranslationRetries   = 3
	defaultTranslationDelay     = 1
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMReferer           = ""
	defaultLLMTitle             = "subline translator"
	defaultLLMTimeoutSeconds    = 60
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAISTTModel       = "whisper-1"
	defaultOpenAIChatModel      = "gpt-4o-mini"
	defaultMyMemoryBaseURL      = "https://api.mymemory.translated.net/get"
	defaultOutputFormat         = FormatSRT
	defaultYTDLPBinary          = "yt-dlp"
	defaultDownloadAudioFormat  = "mp3"
	defaultLogFormat            = "console"
	defaultLogRetentionDays     = 30
	defaultLogLevel             = "info"
	defaultMetricsBind          = "127.0.0.1:9464"
	defaultNormalizeAudio       = true
	defaultDeleteTempFiles      = true
	defaultFilterHallucinations = false
	defaultTranslationEnabled   = false
	defaultReduceNoise          = false
	defaultTrimSilence          = false
	defaultMetricsEnabled       = false
	defaultTranscriptionCUDA    = false
	defaultNtfyTimeout          = 10
	defaultNotifyOnSuccess      = true
)

// Recognizer engines.
const (
	EngineWhisperX = "whisperx"
	EngineOpenAI   = "openai"
)

// Translation providers.
const (
	ProviderLLM      = "llm"
	ProviderOpenAI   = "openai"
	ProviderMyMemory = "mymemory"
	ProviderNone     = "none"
)

// Output formats.
const (
	FormatSRT = "srt"
	FormatVTT = "vtt"
	FormatTXT = "txt"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Transcription: Transcription{
			Engine:       defaultEngine,
			ModelVariant: defaultModelVariant,
			ChunkLength:  defaultChunkLength,
			CUDAEnabled:  defaultTranscriptionCUDA,
			VADMethod:    defaultVADMethod,
		},
		Audio: Audio{
			Normalize:   defaultNormalizeAudio,
			ReduceNoise: defaultReduceNoise,
			TrimSilence: defaultTrimSilence,
		},
		Translation: Translation{
			Enabled:           defaultTranslationEnabled,
			TargetLanguage:    defaultTargetLanguage,
			Primary:           defaultPrimaryTranslator,
			Fallback:          defaultFallbackTranslator,
			Retries:           defaultTranslationRetries,
			RetryDelaySeconds: defaultTranslationDelay,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		OpenAI: OpenAI{
			BaseURL:            defaultOpenAIBaseURL,
			TranscriptionModel: defaultOpenAISTTModel,
			ChatModel:          defaultOpenAIChatModel,
		},
		MyMemory: MyMemory{
			BaseURL: defaultMyMemoryBaseURL,
		},
		Output: Output{
			Format:               defaultOutputFormat,
			DeleteTempFiles:      defaultDeleteTempFiles,
			FilterHallucinations: defaultFilterHallucinations,
		},
		Download: Download{
			YTDLPBinary: defaultYTDLPBinary,
			AudioFormat: defaultDownloadAudioFormat,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			OnSuccess:      defaultNotifyOnSuccess,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			Enabled: defaultMetricsEnabled,
			Bind:    defaultMetricsBind,
		},
	}
}
