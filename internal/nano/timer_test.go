package nano

import (
	"testing"
	"time"
)

func TestTimerMonotonic(t *testing.T) {
	timer := NewTimer()
	start := timer.Now()
	time.Sleep(time.Millisecond)
	if elapsed := timer.ElapsedNs(start); elapsed < uint64(time.Millisecond) {
		t.Fatalf("至少经过 1ms, 实际 %dns", elapsed)
	}
	if ms := timer.Elapsed(start); ms < 1 {
		t.Fatalf("毫秒读数应 >= 1, 实际 %f", ms)
	}
}

func TestSinceClampsBackwards(t *testing.T) {
	clock := NewManualClock(10)
	if got := Since(clock, 20); got != 0 {
		t.Fatalf("起点晚于当前时应返回 0, 实际 %d", got)
	}
	clock.Advance(15)
	if got := Since(clock, 20); got != 5 {
		t.Fatalf("期望 5, 实际 %d", got)
	}
	if Millis(uint64(1500*time.Microsecond)) != 1.5 {
		t.Fatal("Millis 转换错误")
	}
}
