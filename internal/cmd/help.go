package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gekflow/gek/internal/ui"
	"github.com/spf13/cobra"
)

var (
	groupHeaderRE   = regexp.MustCompile(`(?m)^([A-Z][A-Za-z &]+:)\s*$`)
	sectionHeaderRE = regexp.MustCompile(`(?m)^(Examples|Flags|Usage|Global Flags|Aliases|Available Commands):`)
	cmdLineRE       = regexp.MustCompile(`(?m)^(  )([a-z][a-z0-9]*(?:-[a-z0-9]+)*)(\s{2,})(.*)$`)
	flagLineRE      = regexp.MustCompile(`(?m)^(\s+)(-\w,\s+--[\w-]+|--[\w-]+)(\s+)(string|int|ints|duration|bool)?(\s*.*)$`)
	defaultRE       = regexp.MustCompile(`(\(default[^)]*\))`)
	cmdRefRE        = regexp.MustCompile(`'(gek [a-z][a-z0-9 -]*)'`)
)

// colorizedHelpFunc wraps Cobra's default help with semantic coloring.
func colorizedHelpFunc(cmd *cobra.Command, args []string) {
	var output strings.Builder

	if cmd.Long != "" {
		output.WriteString(cmd.Long)
		output.WriteString("\n\n")
	} else if cmd.Short != "" {
		output.WriteString(cmd.Short)
		output.WriteString("\n\n")
	}
	output.WriteString(cmd.UsageString())

	fmt.Fprint(cmd.OutOrStdout(), colorizeHelpOutput(output.String()))
}

// colorizeHelpOutput applies semantic colors to help text:
// group and section headers get the accent color, command and flag names
// are bold, and default values are muted.
func colorizeHelpOutput(help string) string {
	result := groupHeaderRE.ReplaceAllStringFunc(help, func(match string) string {
		return ui.RenderAccent(strings.TrimSpace(match))
	})

	result = sectionHeaderRE.ReplaceAllStringFunc(result, ui.RenderAccent)

	result = cmdLineRE.ReplaceAllStringFunc(result, func(match string) string {
		parts := cmdLineRE.FindStringSubmatch(match)
		if len(parts) != 5 {
			return match
		}
		return parts[1] + ui.RenderBold(parts[2]) + parts[3] + colorizeCommandRefs(parts[4])
	})

	result = flagLineRE.ReplaceAllStringFunc(result, func(match string) string {
		parts := flagLineRE.FindStringSubmatch(match)
		if len(parts) < 6 {
			return match
		}
		indent, flags, spacing, typeStr, desc := parts[1], parts[2], parts[3], parts[4], parts[5]
		desc = defaultRE.ReplaceAllStringFunc(desc, ui.RenderMuted)
		if typeStr != "" {
			return indent + ui.RenderBold(flags) + spacing + ui.RenderMuted(typeStr) + desc
		}
		return indent + ui.RenderBold(flags) + spacing + desc
	})

	return result
}

// colorizeCommandRefs highlights quoted command references like 'gek status'.
func colorizeCommandRefs(text string) string {
	return cmdRefRE.ReplaceAllStringFunc(text, func(match string) string {
		return "'" + ui.RenderBold(match[1:len(match)-1]) + "'"
	})
}

func init() {
	rootCmd.SetHelpFunc(colorizedHelpFunc)
}
