package notify

import (
	"fmt"

	"github.com/Fiszcz/OLX-flats-notificator/app/classify"
)

type Policy struct {
	SendWorse             bool
	ComposeIntoOneMessage bool
}

// Batch is one group of outgoing messages. Worse listings never share a batch
// with the others.
type Batch struct {
	Title    string
	Worse    bool
	Messages []Message
}

// Batches turns the verdicts of one cycle into outgoing batches. No
// qualifying listing means no batch at all.
func Batches(verdicts []classify.Verdict, policy Policy) []Batch {
	var good, worse []Message
	for _, v := range verdicts {
		if v.IsWorse {
			if policy.SendWorse {
				worse = append(worse, NewMessage(v))
			}
			continue
		}
		good = append(good, NewMessage(v))
	}

	var batches []Batch
	if len(good) > 0 {
		batches = append(batches, newBatch(countTitle(len(good)), false, good, policy))
	}
	if len(worse) > 0 {
		batches = append(batches, newBatch("[WORSE] "+countTitle(len(worse)), true, worse, policy))
	}
	return batches
}

func newBatch(title string, worse bool, messages []Message, policy Policy) Batch {
	if policy.ComposeIntoOneMessage {
		messages = []Message{Compose(messages, title)}
	}
	return Batch{Title: title, Worse: worse, Messages: messages}
}

func countTitle(n int) string {
	if n == 1 {
		return "1 listing"
	}
	return fmt.Sprintf("%d listings", n)
}

// Accumulator collects the verdicts of one intake cycle.
type Accumulator struct {
	verdicts []classify.Verdict
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Add(v classify.Verdict) {
	a.verdicts = append(a.verdicts, v)
}

func (a *Accumulator) Reset() {
	a.verdicts = nil
}

func (a *Accumulator) Len() int {
	return len(a.verdicts)
}

func (a *Accumulator) Verdicts() []classify.Verdict {
	return a.verdicts
}

func (a *Accumulator) Batches(policy Policy) []Batch {
	return Batches(a.verdicts, policy)
}
