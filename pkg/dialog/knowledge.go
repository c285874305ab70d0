package dialog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// KnowledgeBase holds the locally-answered triggers: gesture keywords,
// spoken number words, and canned question/answer pairs. Everything
// here is resolved without a model round trip.
type KnowledgeBase struct {
	Actions struct {
		// SingleDigit maps a trigger phrase to a basic motion ID.
		SingleDigit map[string]string `json:"single_digit"`
		// DoubleDigit maps a trigger phrase to a performance motion ID.
		DoubleDigit map[string]string `json:"double_digit"`
	} `json:"actions"`

	// NumberMapping groups spoken number words by script.
	NumberMapping struct {
		Traditional map[string]int `json:"traditional"`
		Simplified  map[string]int `json:"simplified"`
		Cantonese   map[string]int `json:"cantonese"`
		English     map[string]int `json:"english"`
	} `json:"number_mapping"`

	// GeneralQA holds canned answers matched by substring in either
	// direction.
	GeneralQA map[string]string `json:"general_qa"`
}

// LoadKnowledgeBase reads a knowledge base JSON file. An empty path
// returns the built-in defaults.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	if path == "" {
		return DefaultKnowledgeBase(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dialog: read knowledge base: %w", err)
	}
	kb := &KnowledgeBase{}
	if err := json.Unmarshal(data, kb); err != nil {
		return nil, fmt.Errorf("dialog: parse knowledge base: %w", err)
	}
	return kb, nil
}

// DefaultKnowledgeBase returns the built-in trigger set for the stock
// device vocabulary.
func DefaultKnowledgeBase() *KnowledgeBase {
	kb := &KnowledgeBase{}
	kb.Actions.SingleDigit = map[string]string{
		"揮手":  "9",
		"招手":  "9",
		"前進":  "1",
		"後退":  "2",
		"左移":  "3",
		"右移":  "4",
		"左轉":  "7",
		"右轉":  "8",
		"企好":  "0",
	}
	kb.Actions.DoubleDigit = map[string]string{
		"鞠躬":  "10",
		"慶祝":  "12",
		"左腳踢": "13",
		"右腳踢": "14",
		"左勾拳": "16",
		"右勾拳": "17",
		"扭腰":  "22",
		"踏步":  "24",
	}
	kb.NumberMapping.Traditional = map[string]int{
		"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
		"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
	}
	kb.NumberMapping.Simplified = map[string]int{
		"两": 2,
	}
	kb.NumberMapping.Cantonese = map[string]int{
		"兩": 2,
	}
	kb.NumberMapping.English = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	}
	kb.GeneralQA = map[string]string{
		"你叫咩名": "我叫 Raspberry，係 VTC 學生開發嘅機械人助手！",
		"你識做啲咩": "我識傾偈、跳舞、打詠春，仲可以幫你查天氣新聞！",
	}
	return kb
}

// Numbers flattens the per-script number mappings into one lookup.
func (kb *KnowledgeBase) Numbers() map[string]int {
	out := map[string]int{}
	for _, m := range []map[string]int{
		kb.NumberMapping.Traditional,
		kb.NumberMapping.Simplified,
		kb.NumberMapping.Cantonese,
		kb.NumberMapping.English,
	} {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// AnswerFor returns a canned answer when the query overlaps a known
// question, matched by substring in either direction.
func (kb *KnowledgeBase) AnswerFor(query string) (string, bool) {
	for question, answer := range kb.GeneralQA {
		if strings.Contains(query, question) || strings.Contains(question, query) {
			return answer, true
		}
	}
	return "", false
}
