package ui

import "neuroreverse/internal/workflow"

type pageID string

type chatResultMsg struct {
	page pageID
	res  workflow.Result
}

type uploadDoneMsg struct {
	page pageID
	res  workflow.UploadResult
}

type initDoneMsg struct {
	page pageID
	res  workflow.InitResult
}

type benchmarkDoneMsg struct {
	page pageID
	res  workflow.BenchmarkResult
}

type renderMsg struct {
	page     pageID
	rendered string
	nonce    int
	err      error
}

type exportMsg struct {
	page pageID
	path string
	err  error
}

type copyMsg struct {
	page pageID
	err  error
}

// noticeQueue holds blocking notices. While one is showing, every key but
// the dismiss keys is swallowed.
type noticeQueue struct {
	items []string
}

func (q *noticeQueue) Push(text string) {
	if text == "" {
		return
	}
	q.items = append(q.items, text)
}

func (q *noticeQueue) Current() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0], true
}

func (q *noticeQueue) Dismiss() {
	if len(q.items) == 0 {
		return
	}
	q.items = q.items[1:]
}

func (q *noticeQueue) Len() int { return len(q.items) }
