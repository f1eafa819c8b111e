package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Language is a BCP-47 code applied uniformly to every generation,
	// synthesis and capture call for the whole session.
	Language string

	// Generator selects the question-generation backend: "cerebras" or "gemini".
	Generator       string
	CerebrasKey     string
	CerebrasModelID string
	GeminiKey       string
	GeminiModelID   string

	DeepgramKey       string
	DeepgramVoice     string
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	AssemblyAIKey string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	language := os.Getenv("INTERVIEW_LANGUAGE")
	if language == "" {
		language = "en"
	}

	generator := os.Getenv("GENERATOR_BACKEND")
	if generator == "" {
		generator = "cerebras"
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "gpt-oss-120b"
	}
	geminiKey := os.Getenv("GEMINI_API_KEY")
	geminiModel := os.Getenv("GEMINI_MODEL_ID")
	if geminiModel == "" {
		geminiModel = "gemini-2.0-flash"
	}
	if generator == "cerebras" && cerebrasKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - question generation will not work")
	}
	if generator == "gemini" && geminiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set - question generation will not work")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if deepgramKey == "" && elevenKey == "" {
		log.Println("Warning: no TTS key set - questions will be shown as silent text only")
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - voice capture disabled, typed answers only")
	}

	log.Printf("config: HTTP_ADDRESS=%s language=%s generator=%s", addr, language, generator)
	return Config{
		HTTPAddress:       addr,
		Language:          language,
		Generator:         generator,
		CerebrasKey:       cerebrasKey,
		CerebrasModelID:   cerebrasModel,
		GeminiKey:         geminiKey,
		GeminiModelID:     geminiModel,
		DeepgramKey:       deepgramKey,
		DeepgramVoice:     os.Getenv("DEEPGRAM_VOICE"),
		ElevenLabsKey:     elevenKey,
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		AssemblyAIKey:     assemblyAIKey,
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseKey:       os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:    os.Getenv("SUPABASE_BUCKET"),
	}
}
