package keybinds

import (
	"fmt"
	"strings"
)

// ValidationError represents a keybinding validation error
type ValidationError struct {
	Type    string // "reserved", "invalid", "warning"
	Context Context
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s in context '%s': %s", e.Type, e.Key, e.Context, e.Message)
}

// ValidationResult contains all validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any errors
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any warnings
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of validation results
func (r *ValidationResult) String() string {
	var sb strings.Builder

	if len(r.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("Errors (%d):\n", len(r.Errors)))
		for _, err := range r.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
		}
	}

	if len(r.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("Warnings (%d):\n", len(r.Warnings)))
		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn.Error()))
		}
	}

	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}

	return sb.String()
}

// Validator validates user keybinding configurations
type Validator struct {
	// reservedKeys are keys that must keep their default action
	reservedKeys map[string]Action
	known        map[Action]bool
}

// NewValidator creates a new keybinding validator
func NewValidator() *Validator {
	v := &Validator{
		reservedKeys: map[string]Action{
			"ctrl+c": ActionQuitForce,
			"esc":    ActionBack,
		},
		known: make(map[Action]bool),
	}
	for _, bindings := range NewDefaultRegistry().bindings {
		for _, action := range bindings {
			v.known[action] = true
		}
	}
	return v
}

// ValidateConfig validates a configuration before applying it
func (v *Validator) ValidateConfig(config *Config) *ValidationResult {
	result := &ValidationResult{}

	for context, bindings := range config.sections() {
		for keys, actionStr := range bindings {
			for _, key := range strings.Split(keys, ",") {
				key = strings.TrimSpace(key)
				if err := ValidateKey(key); err != nil {
					result.Errors = append(result.Errors, ValidationError{
						Type: "invalid", Context: context, Key: key, Message: err.Error(),
					})
					continue
				}
				v.checkReserved(context, key, Action(actionStr), result)
				if actionStr != "" && !v.known[Action(actionStr)] {
					result.Warnings = append(result.Warnings, ValidationError{
						Type: "warning", Context: context, Key: key,
						Message: fmt.Sprintf("unknown action %q", actionStr),
					})
				}
			}
		}
	}

	return result
}

// checkReserved rejects rebinding ctrl+c and esc in global scope. Modal and
// text input contexts may map esc to their own close/cancel actions.
func (v *Validator) checkReserved(context Context, key string, action Action, result *ValidationResult) {
	want, reserved := v.reservedKeys[key]
	if !reserved || action == want {
		return
	}
	if key == "esc" && (action == ActionCloseModal || action == ActionTextCancel) {
		return
	}
	if context != ContextGlobal && key == "esc" {
		result.Errors = append(result.Errors, ValidationError{
			Type: "reserved", Context: context, Key: key,
			Message: "esc always returns to the tab bar",
		})
		return
	}
	result.Errors = append(result.Errors, ValidationError{
		Type: "reserved", Context: context, Key: key,
		Message: fmt.Sprintf("reserved for %s", want),
	})
}

// ValidateKey checks if a key string is valid
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	for _, mod := range []string{"ctrl+", "alt+", "shift+", "super+"} {
		if key == mod {
			return fmt.Errorf("modifier without key: %s", key)
		}
	}

	return nil
}
