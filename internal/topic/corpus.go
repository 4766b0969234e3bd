package topic

// Topic is one labeled bag of representative phrases.
type Topic struct {
	Label    string
	Keywords []string
}

// Corpus is the ordered set of topics. Order matters: it decides ties.
type Corpus []Topic

func (c Corpus) Labels() []string {
	labels := make([]string, len(c))
	for i, t := range c {
		labels[i] = t.Label
	}
	return labels
}

// DefaultCorpus returns a fresh copy of the built-in topic corpus.
func DefaultCorpus() Corpus {
	out := make(Corpus, len(defaultCorpus))
	for i, t := range defaultCorpus {
		out[i] = Topic{Label: t.Label, Keywords: append([]string(nil), t.Keywords...)}
	}
	return out
}

var defaultCorpus = Corpus{
	{"LLM_Infra", []string{
		"llm", "large language model",
		"inference", "serving", "inference server",
		"high throughput", "low latency",
		"distributed inference", "batching",
		"kv cache", "context length",
		"quantization", "int8", "int4",
		"model serving", "model runtime",
		"transformer", "decoder-only",
		"rag", "retrieval augmented generation",
		"semantic retrieval", "vector search",
		"gateway", "api gateway",
		"llama", "mistral", "gemini", "deepseek",
	}},
	{"Multimodal_AI", []string{
		"multimodal",
		"tts", "text to speech",
		"speech to text", "asr", "transcription",
		"voice cloning", "speech synthesis",
		"ocr", "pdf", "document understanding",
		"pdf linearization",
		"image generation", "video generation",
		"face swap", "deepfake",
		"avatar", "digital human",
		"song generation", "music generation",
		"audio", "video", "vision",
	}},
	{"Agent_MCP", []string{
		"agent", "ai agent", "coding agent",
		"autonomous", "agentic",
		"mcp", "model context protocol",
		"skills", "tool calling",
		"workflow", "orchestration",
		"prompt engineering", "system prompt",
		"planning", "reasoning",
		"claude", "claude code",
		"copilot", "assistant runtime",
		"multi-agent", "agent swarm",
	}},
	{"Database_Storage", []string{
		"database", "distributed database",
		"sql", "nosql",
		"postgres", "postgresql",
		"mysql", "mariadb", "sqlite",
		"mongodb", "redis",
		"timeseries", "time-series",
		"olap", "analytics database",
		"data warehouse",
		"object storage", "s3",
		"kv store", "key value",
		"lakehouse", "parquet",
	}},
	{"System_Kernel", []string{
		"kernel", "operating system",
		"linux", "wayland",
		"runtime", "interpreter",
		"virtual machine", "microvm",
		"emulator", "simulation",
		"x86", "arm",
		"scheduler", "memory allocator",
		"profiling", "tracing",
	}},
	{"Embedded_Firmware", []string{
		"embedded", "firmware",
		"microcontroller", "mcu",
		"freertos", "zephyr",
		"iot", "esp32", "esp8266",
		"flight controller",
		"navigation",
		"keyboard firmware", "qmk", "zmk",
		"bare metal",
	}},
	{"Networking_Security", []string{
		"network", "networking",
		"proxy", "reverse proxy",
		"gateway", "load balancer",
		"vpn", "wireguard",
		"encryption", "tls", "ssl",
		"security", "vulnerability",
		"scanner", "sbom",
		"xdr", "siem",
		"auth", "sso", "oauth",
	}},
	{"DevTool_Testing", []string{
		"developer tool", "devtool",
		"sdk", "framework", "library",
		"testing", "unit test",
		"mock", "fuzzing",
		"ci", "cd", "pipeline",
		"build system",
		"docker", "container",
		"deployment",
	}},
	{"CLI_Editor", []string{
		"cli", "command line",
		"terminal", "shell",
		"prompt", "prompt renderer",
		"text editor", "code editor",
		"reverse engineering",
		"disassembler", "decompiler",
		"hex editor",
	}},
	{"WebApp_Monitoring", []string{
		"web", "web ui",
		"self hosted", "self-hosted",
		"dashboard",
		"monitoring", "metrics",
		"alerting", "uptime",
		"rss", "news aggregation",
		"crawler", "scraper",
		"youtube downloader",
		"web service",
	}},
	{"Game_Physics", []string{
		"game engine",
		"physics engine",
		"collision detection",
		"rigid body",
		"rendering", "graphics",
		"2d engine", "3d engine",
		"godot",
		"gpu", "shader",
	}},
	{"Collection_Edu", []string{
		"awesome",
		"curated list",
		"collection",
		"roadmap",
		"tutorial",
		"learning",
		"educational",
		"algorithms",
		"data structures",
		"book",
	}},
	{"FinTech", []string{
		"fintech",
		"trading",
		"algorithmic trading",
		"quant", "quantitative",
		"backtesting",
		"market data",
		"financial system",
	}},
}
