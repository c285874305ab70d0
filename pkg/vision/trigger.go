// Package vision answers "what do you see" questions by running the
// latest camera frame through an image-capable model.
package vision

import "strings"

// triggerKeywords are the phrases that route an utterance to vision
// instead of the dialog engine. Cantonese and Mandarin variants of
// "what do you see". Only question-shaped phrases qualify; a bare
// "見到" would hijack ordinary sentences about seeing things.
var triggerKeywords = []string{
	"看到什麼", "見到什麼", "看到咩野", "見到咩野",
	"你看見什麼", "你看見了什麼", "看見什麼",
	"睇到咩", "睇見咩", "睇到啲咩", "見到啲咩",
}

// ShouldTrigger reports whether the utterance asks about the camera
// view.
func ShouldTrigger(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// personTerms mark a description as containing a person; seeing one
// makes the robot wave.
var personTerms = []string{
	"person", "people", "human", "man", "woman", "boy", "girl",
	"child", "baby", "face",
	"人", "人物", "男人", "女人", "小孩", "嬰兒", "臉", "面孔",
}

// DescribesPerson reports whether a scene description mentions a
// person.
func DescribesPerson(description string) bool {
	lower := strings.ToLower(description)
	for _, term := range personTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
