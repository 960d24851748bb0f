package store

import (
	"sync"
	"time"
)

// KeyLayout はレコードキーのタイムスタンプ書式（マイクロ秒精度、辞書順＝時系列順）
const KeyLayout = "2006-01-02 15:04:05.000000"

// Clock はレコードキーを払い出す
//
// 払い出すキーは直前のキーより必ず後の時刻になり、
// 既存のCollectionと衝突する場合は1マイクロ秒ずつずらす。
// 同一マイクロ秒内の投稿が上書きされることはない。
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock は壁時計を使うClockを作成する
func NewClock() *Clock {
	return NewClockFunc(time.Now)
}

// NewClockFunc は任意の時刻関数を使うClockを作成する
func NewClockFunc(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next は existing に含まれない新しいキーを返す
func (c *Clock) Next(existing Collection) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().Truncate(time.Microsecond)
	if !c.last.IsZero() && !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}

	for {
		key := t.Format(KeyLayout)
		if _, taken := existing[key]; !taken {
			c.last = t
			return key
		}
		t = t.Add(time.Microsecond)
	}
}
