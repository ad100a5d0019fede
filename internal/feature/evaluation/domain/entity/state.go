package entity

import "fmt"

// SessionState はアップロード画面の状態です。
//
//	Idle → Selecting → Submitting → (Success | Failure) → Idle（リセット時のみ）
type SessionState int

const (
	StateIdle SessionState = iota
	StateSelecting
	StateSubmitting
	StateSuccess
	StateFailure
)

var stateNames = [...]string{"idle", "selecting", "submitting", "success", "failure"}

func (s SessionState) String() string {
	if int(s) < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal は終端状態かどうかを返します。
func (s SessionState) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// MarshalText は状態名で出力します。
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText は状態名から復元します。
func (s *SessionState) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = SessionState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(b))
}
