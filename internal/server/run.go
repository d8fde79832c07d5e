package server

import (
	"sync"

	"github.com/shouni/go-chapter-kit/pkg/domain"
)

// run は1回分のパイプラインと、そこから届いたイベントの履歴なのだ。
type run struct {
	id string
	r  Run

	mu      sync.Mutex
	events  []domain.Event
	changed chan struct{}
	result  *domain.Result
	lastErr string
}

func newRun(id string) *run {
	return &run{id: id, changed: make(chan struct{})}
}

// record は observer として工程の通知を受け取るのだ。
func (rn *run) record(e domain.Event) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.events = append(rn.events, e)
	rn.broadcast()
}

func (rn *run) setResult(res *domain.Result) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.result = res
	rn.lastErr = ""
}

func (rn *run) setError(err error) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.lastErr = err.Error()
	rn.broadcast()
}

// broadcast は待機中の購読者を起こすのだ。mu を保持した状態で呼ぶのだ。
func (rn *run) broadcast() {
	close(rn.changed)
	rn.changed = make(chan struct{})
}

// since は from 番目以降のイベントと、次の変化を待つためのチャネルを返すのだ。
func (rn *run) since(from int) ([]domain.Event, <-chan struct{}) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	var out []domain.Event
	if from < len(rn.events) {
		out = append(out, rn.events[from:]...)
	}
	return out, rn.changed
}

func (rn *run) snapshot() (*domain.Result, string) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	return rn.result, rn.lastErr
}

// terminal は購読を終えてよいイベントかを判定するのだ。
func terminal(e domain.Event) bool {
	return e.Stage == domain.StageComplete || e.Error != ""
}
