// Package autoload 以 blank import 的方式註冊所有內建 LLM Providers
package autoload

import (
	_ "fingerbot/pkg/llm/gemini"
	_ "fingerbot/pkg/llm/ollama"
	_ "fingerbot/pkg/llm/openailm"
)
