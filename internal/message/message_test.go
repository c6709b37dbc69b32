package message

import "testing"

func TestTransmissionDelay(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		len   int
		want  int
	}{
		{name: "exact division", speed: 2, len: 8, want: 4},
		{name: "floors remainder", speed: 2, len: 9, want: 4},
		{name: "never below one", speed: 5, len: 1, want: 1},
		{name: "fractional speed", speed: 0.5, len: 2, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransmissionDelay(tt.speed, tt.len)
			if got != tt.want {
				t.Errorf("TransmissionDelay(%v, %d) = %d, want %d", tt.speed, tt.len, got, tt.want)
			}
		})
	}
}

func TestIsCollision(t *testing.T) {
	collided := Message{Value: Collision, TransmissionDelay: 4}
	normal := Message{Value: "hi", TransmissionDelay: 4}

	if !collided.IsCollision() {
		t.Error("expected collided message to report IsCollision")
	}
	if normal.IsCollision() {
		t.Error("expected normal message to not report IsCollision")
	}
}
