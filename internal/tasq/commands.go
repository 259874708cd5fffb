package tasq

import (
	"strconv"
	"strings"
)

// ListFilter selects which tasks `tasq list` prints.
type ListFilter int

const (
	ListAll ListFilter = iota
	ListPending
	ListCompleted
)

func AddArgs(description string, priority int) []string {
	return []string{"add", description, "--priority", strconv.Itoa(priority)}
}

func ListArgs(filter ListFilter) []string {
	switch filter {
	case ListPending:
		return []string{"list", "--pending"}
	case ListCompleted:
		return []string{"list", "--completed"}
	default:
		return []string{"list"}
	}
}

func NextArgs() []string {
	return []string{"next"}
}

func CompleteArgs(identifier string) []string {
	return []string{"complete", identifier}
}

func SetPriorityArgs(identifier string, priority int) []string {
	return []string{"set-priority", identifier, strconv.Itoa(priority)}
}

func InitArgs() []string {
	return []string{"init"}
}

// CountLines counts newline-separated lines; empty output has zero lines.
func CountLines(output string) int {
	if output == "" {
		return 0
	}
	return strings.Count(output, "\n") + 1
}
