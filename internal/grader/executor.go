package grader

import (
	"fmt"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

// Executor prepares submitted source for the JavaScript invoker
type Executor interface {
	Language() domain.Language
	Prepare(source string) string
}

// JavaScriptExecutor passes source through unchanged
type JavaScriptExecutor struct{}

func (JavaScriptExecutor) Language() domain.Language { return domain.LanguageJavaScript }

func (JavaScriptExecutor) Prepare(source string) string { return source }

// PythonExecutor transliterates Python into JavaScript
type PythonExecutor struct{}

func (PythonExecutor) Language() domain.Language { return domain.LanguagePython }

func (PythonExecutor) Prepare(source string) string { return TranslatePython(source) }

// ExecutorRegistry maps languages to executors
type ExecutorRegistry struct {
	executors map[domain.Language]Executor
}

// NewExecutorRegistry creates a registry with the built-in executors
func NewExecutorRegistry() *ExecutorRegistry {
	r := &ExecutorRegistry{executors: make(map[domain.Language]Executor)}
	r.Register(JavaScriptExecutor{})
	r.Register(PythonExecutor{})
	return r
}

// Register adds or replaces an executor
func (r *ExecutorRegistry) Register(exec Executor) {
	r.executors[exec.Language()] = exec
}

// Get returns the executor for a language
func (r *ExecutorRegistry) Get(lang domain.Language) (Executor, error) {
	exec, ok := r.executors[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, lang)
	}
	return exec, nil
}

// SupportedLanguages returns the registered languages in display order
func (r *ExecutorRegistry) SupportedLanguages() []domain.Language {
	var langs []domain.Language
	for _, lang := range domain.AllLanguages() {
		if _, ok := r.executors[lang]; ok {
			langs = append(langs, lang)
		}
	}
	return langs
}
