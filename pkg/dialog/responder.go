package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/vtc-robotics/raspbot/pkg/actions"
)

// Searcher is the web search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// greetings are checked as substrings of the lowercased utterance.
var greetings = []string{
	"你好", "哈囉", "hi", "hello", "早晨", "午安", "晚安",
	"早上好", "下午好", "晚上好", "打招呼",
}

// searchTriggers route the utterance to web search instead of the
// model.
var searchTriggers = []string{"天氣", "新聞"}

// smallActions are quick motions sprinkled into ordinary chat so the
// device does not stand frozen while talking.
var smallActions = []string{"0", "7", "8", "9", "10", "16", "17", "24"}

// smallActionChance is the probability of a filler motion per chat
// reply.
const smallActionChance = 0.6

// Responder routes an utterance to the cheapest component that can
// answer it: canned answers, gesture triggers, and slash commands are
// resolved locally; search keywords go to the web; everything else
// reaches the language model. Gestures are enqueued as a side effect,
// so one utterance can produce both a spoken reply and a motion.
type Responder struct {
	kb       *KnowledgeBase
	numbers  map[string]int
	engine   Engine
	queue    *actions.Queue
	routines *actions.Routines
	searcher Searcher
	logger   *slog.Logger

	// randFloat and randIndex are swappable for tests.
	randFloat func() float64
	randIndex func(n int) int
}

// NewResponder wires the responder. searcher may be nil, in which case
// search-triggering utterances fall through to the engine.
func NewResponder(kb *KnowledgeBase, engine Engine, queue *actions.Queue, routines *actions.Routines, searcher Searcher, logger *slog.Logger) *Responder {
	if kb == nil {
		kb = DefaultKnowledgeBase()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		kb:        kb,
		numbers:   kb.Numbers(),
		engine:    engine,
		queue:     queue,
		routines:  routines,
		searcher:  searcher,
		logger:    logger.With("component", "dialog.responder"),
		randFloat: rand.Float64,
		randIndex: rand.Intn,
	}
}

// Respond produces the spoken reply for an utterance, enqueuing any
// triggered gestures along the way.
func (r *Responder) Respond(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("dialog: empty input")
	}
	lower := strings.ToLower(input)
	isGreeting := r.isGreeting(lower)

	// Canned answers win outright.
	if answer, ok := r.kb.AnswerFor(input); ok {
		if isGreeting {
			r.enqueueWave()
		}
		return answer, nil
	}

	// Choreographed performances.
	if strings.Contains(input, "跳舞") || strings.Contains(lower, "dance") {
		name := r.routines.RandomDance()
		r.logger.Info("dance triggered", "routine", name)
		return "好的，我開始跳舞了！", nil
	}
	if strings.Contains(input, "詠春") {
		r.routines.WingChun()
		return "睇我打詠春！", nil
	}

	// Gesture triggers.
	if reply, ok := r.matchAction(input); ok {
		return reply, nil
	}

	// Slash commands and their spoken aliases.
	if reply, ok := r.handleCommand(lower, input); ok {
		return reply, nil
	}

	// Web search for time-sensitive topics.
	if r.searcher != nil && containsAny(input, searchTriggers) {
		return r.handleSearch(ctx, input)
	}

	// Date questions never need a model.
	if strings.Contains(input, "日期") || strings.Contains(input, "今天") || strings.Contains(input, "今日") {
		return fmt.Sprintf("今天是 %s。", time.Now().Format("2006年01月02日")), nil
	}

	reply, err := r.engine.Respond(ctx, input)
	if err != nil {
		return "", err
	}

	if isGreeting {
		r.enqueueWave()
	} else {
		r.maybeSmallAction()
	}
	return reply, nil
}

func (r *Responder) isGreeting(lower string) bool {
	return containsAny(lower, greetings)
}

func (r *Responder) matchAction(input string) (string, bool) {
	for trigger, actionID := range r.kb.Actions.SingleDigit {
		if strings.Contains(input, trigger) {
			return r.enqueueAction(trigger, actionID, input), true
		}
	}
	for trigger, actionID := range r.kb.Actions.DoubleDigit {
		if strings.Contains(input, trigger) {
			return r.enqueueAction(trigger, actionID, input), true
		}
	}
	return "", false
}

func (r *Responder) enqueueAction(trigger, actionID, input string) string {
	repeat := extractRepeat(input, r.numbers)
	cmd, err := actions.NewCommand(actionID, repeat)
	if err != nil {
		r.logger.Error("invalid action trigger", "trigger", trigger, "action_id", actionID, "error", err)
		return "抱歉，執行動作時出現問題。"
	}
	if err := r.queue.Enqueue(cmd); err != nil {
		r.logger.Warn("gesture dropped", "trigger", trigger, "error", err)
		return "我而家好忙，遲啲再做呢個動作。"
	}
	return fmt.Sprintf("好的，我會%s，重複%d次", trigger, cmd.RepeatCount)
}

func (r *Responder) handleCommand(lower, input string) (string, bool) {
	switch {
	case lower == "/stop" || strings.Contains(input, "停止"):
		drained := r.queue.Clear()
		r.logger.Info("actions stopped by user", "drained", drained)
		return "已停止所有動作", true
	case lower == "/status" || strings.Contains(input, "狀態"):
		return fmt.Sprintf("隊列中還有 %d 個動作待執行", r.queue.Depth()), true
	case lower == "/clear" || strings.Contains(input, "清除記憶"):
		r.engine.Reset()
		return "已清除對話記憶", true
	}
	return "", false
}

func (r *Responder) handleSearch(ctx context.Context, input string) (string, error) {
	results, err := r.searcher.Search(ctx, input)
	if err != nil || len(results) == 0 {
		r.logger.Warn("search failed", "error", err)
		return "抱歉，我未能找到相關資訊。", nil
	}

	prompt := fmt.Sprintf("基於以下搜索結果：\n%s\n\n請用3-4個簡短的句子總結主要信息。注意保持友善的語氣，並確保信息準確完整。",
		strings.Join(results, "\n"))
	return r.engine.Respond(ctx, prompt)
}

func (r *Responder) enqueueWave() {
	if err := r.queue.Enqueue(actions.WaveCommand()); err != nil {
		r.logger.Warn("wave dropped", "error", err)
	}
}

func (r *Responder) maybeSmallAction() {
	if r.randFloat() >= smallActionChance {
		return
	}
	actionID := smallActions[r.randIndex(len(smallActions))]
	cmd, err := actions.NewCommand(actionID, 1)
	if err != nil {
		return
	}
	if err := r.queue.Enqueue(cmd); err == nil {
		r.logger.Debug("filler motion enqueued", "action", actions.ActionName(actionID))
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
