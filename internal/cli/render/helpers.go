package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	if len(message) > 0 {
		message = strings.ToUpper(message[:1]) + message[1:]
	}
	return color.New(color.FgRed).Sprintf("❌ %s", message)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// FormatSize renders a deployed bytecode size, flagging code that cannot be
// deployed under EIP-170
func FormatSize(size int) string {
	kb := fmt.Sprintf("%.2f KiB", float64(size)/1024)
	if size > models.MaxContractSize {
		return color.New(color.FgRed, color.Bold).Sprintf("%s (over the %d byte limit)", kb, models.MaxContractSize)
	}
	return labelStyle.Sprint(kb)
}
