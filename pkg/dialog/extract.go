package dialog

import (
	"regexp"
	"strconv"
	"strings"
)

var arabicNumberRE = regexp.MustCompile(`\d+`)

// extractRepeat pulls a repetition count out of an utterance. Arabic
// digits win; spoken number words are checked next; anything else
// means once. Clamping to the device's safe range is the action
// queue's job, not the parser's.
func extractRepeat(text string, numbers map[string]int) int {
	if m := arabicNumberRE.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	lower := strings.ToLower(text)
	for word, value := range numbers {
		if strings.Contains(lower, strings.ToLower(word)) {
			return value
		}
	}
	return 1
}
