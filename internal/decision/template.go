package decision

import "strings"

// SubstituteFiles replaces the ${HAN_FILES} template in command with a
// space-separated, shell-quoted list of files, or "." when files is
// empty (spec.md §6).
func SubstituteFiles(command string, files []string) string {
	if !strings.Contains(command, "${HAN_FILES}") {
		return command
	}
	return strings.ReplaceAll(command, "${HAN_FILES}", quoteFiles(files))
}

func quoteFiles(files []string) string {
	if len(files) == 0 {
		return "."
	}
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = shellQuote(f)
	}
	return strings.Join(quoted, " ")
}

// shellQuote wraps s in single quotes, escaping any embedded single quote
// using the standard POSIX-shell '\'' idiom.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
