package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/law-makers/dommap/internal/ui"
)

const (
	helpWidth    = 80
	minFlagWidth = 28
)

func helpFunc(cmd *cobra.Command, _ []string) {
	writeHelp(cmd.OutOrStdout(), cmd, true)
}

func usageFunc(cmd *cobra.Command) error {
	writeHelp(cmd.ErrOrStderr(), cmd, false)
	return nil
}

// writeHelp renders colorized help. The short form used for usage errors
// leaves out descriptions, examples and inherited flags.
func writeHelp(w io.Writer, cmd *cobra.Command, full bool) {
	if full {
		fmt.Fprintf(w, "\n%s\n", ui.Heading(strings.ToUpper(cmd.Name())))
		if cmd.Short != "" {
			fmt.Fprintln(w, cmd.Short)
		}
		if cmd.Long != "" && cmd.Long != cmd.Short {
			fmt.Fprintf(w, "\n%s\n", wrapText(cmd.Long, helpWidth))
		}
	}

	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", ui.Command(cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s %s\n", ui.Command(cmd.CommandPath()), ui.Highlight("<command>"), ui.Dim("[flags]"))
	}

	if full && cmd.HasExample() {
		section(w, "Examples")
		writeExamples(w, cmd.Example)
	}

	if cmd.HasAvailableSubCommands() {
		section(w, "Commands")
		writeCommands(w, cmd)
	}

	if cmd.HasAvailableLocalFlags() {
		section(w, "Flags")
		writeFlags(w, cmd.LocalFlags().FlagUsages())
	}
	if full && cmd.HasAvailableInheritedFlags() {
		section(w, "Global Flags")
		writeFlags(w, cmd.InheritedFlags().FlagUsages())
	}

	switch {
	case full && cmd.HasAvailableSubCommands():
		fmt.Fprintf(w, "\n%s\n", ui.Dim(fmt.Sprintf(`Use "%s <command> --help" for more information about a command.`, cmd.CommandPath())))
	case !full:
		fmt.Fprintf(w, "\n%s\n", ui.Dim(fmt.Sprintf(`Use "%s --help" for more information.`, cmd.CommandPath())))
	}
	fmt.Fprintln(w)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold(title))
}

// writeExamples prints "#" lines as dim comments and everything else as a
// shell command, with a blank line between example groups.
func writeExamples(w io.Writer, example string) {
	lastWasCommand := false
	for _, line := range strings.Split(example, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			if lastWasCommand {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s\n", ui.Dim(trimmed))
			lastWasCommand = false
			continue
		}
		fmt.Fprintf(w, "  %s\n", ui.Success("$ "+strings.TrimPrefix(trimmed, "$ ")))
		lastWasCommand = true
	}
}

func writeCommands(w io.Writer, cmd *cobra.Command) {
	var cmds []*cobra.Command
	width := 0
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.Name() == "help" {
			continue
		}
		cmds = append(cmds, c)
		width = max(width, len(c.Name()))
	}
	for _, c := range cmds {
		pad := strings.Repeat(" ", width-len(c.Name())+2)
		fmt.Fprintf(w, "  %s%s%s\n", ui.Command(c.Name()), pad, ui.Dim(c.Short))
	}
}

// writeFlags realigns pflag's usage text so descriptions share one column.
func writeFlags(w io.Writer, usages string) {
	lines := strings.Split(usages, "\n")

	width := minFlagWidth
	for _, line := range lines {
		if name, _, ok := splitFlagLine(line); ok {
			width = max(width, len(name))
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, desc, ok := splitFlagLine(line)
		if !ok {
			// continuation of the previous description
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", width+4), ui.Dim(strings.TrimSpace(line)))
			continue
		}
		if desc == "" {
			fmt.Fprintf(w, "  %s\n", ui.Success(name))
			continue
		}
		pad := strings.Repeat(" ", width-len(name)+2)
		fmt.Fprintf(w, "  %s%s%s\n", ui.Success(name), pad, ui.Dim(desc))
	}
}

// splitFlagLine splits "  -v, --verbose   Enable ..." into its flag and
// description. ok is false for continuation lines.
func splitFlagLine(line string) (name, desc string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "-") {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "  ", 2)
	name = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		desc = strings.TrimSpace(parts[1])
	}
	return name, desc, true
}

// wrapText wraps text at width while keeping paragraphs, explicit line
// breaks and list items.
func wrapText(text string, width int) string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		var out []string
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•") {
				out = append(out, line)
				continue
			}
			out = append(out, wrapLine(line, width)...)
		}
		if len(out) > 0 {
			paragraphs = append(paragraphs, strings.Join(out, "\n"))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func wrapLine(line string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(line) {
		switch {
		case cur.Len() == 0:
			cur.WriteString(word)
		case cur.Len()+1+len(word) <= width:
			cur.WriteString(" " + word)
		default:
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(word)
		}
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
