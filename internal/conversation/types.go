package conversation

import "time"

type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindError     Kind = "error"
)

// Entry is one exchanged message. Files and URLs are only set on user
// entries; error entries carry no timestamp.
type Entry struct {
	Kind  Kind
	Text  string
	Files []string
	URLs  []string
	Time  time.Time
}

func UserEntry(text string, files, urls []string, at time.Time) Entry {
	return Entry{
		Kind:  KindUser,
		Text:  text,
		Files: append([]string(nil), files...),
		URLs:  append([]string(nil), urls...),
		Time:  at,
	}
}

func AssistantEntry(text string, at time.Time) Entry {
	return Entry{Kind: KindAssistant, Text: text, Time: at}
}

func ErrorEntry(text string) Entry {
	return Entry{Kind: KindError, Text: text}
}
