package model

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := [][2]PositionState{
		{PosReceived, PosRiskChecked},
		{PosRiskChecked, PosRejected},
		{PosRiskChecked, PosOpening},
		{PosOpening, PosOpen},
		{PosOpening, PosRejected},
		{PosOpen, PosClosing},
		{PosClosing, PosClosed},
		{PosClosing, PosOpen},
	}
	for _, tc := range allowed {
		if !CanTransition(tc[0], tc[1]) {
			t.Errorf("%s -> %s should be allowed", tc[0], tc[1])
		}
	}

	denied := [][2]PositionState{
		{PosReceived, PosOpen},
		{PosOpen, PosClosed},
		{PosRejected, PosOpening},
		{PosClosed, PosOpen},
		{PosOpen, PosOpening},
	}
	for _, tc := range denied {
		if CanTransition(tc[0], tc[1]) {
			t.Errorf("%s -> %s must be rejected", tc[0], tc[1])
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []PositionState{PosRejected, PosClosed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []PositionState{PosReceived, PosRiskChecked, PosOpening, PosOpen, PosClosing} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestPositionCloneIsolated(t *testing.T) {
	p := &Position{
		Key:         PositionKey{Venue: "paper", Symbol: "BTC/USDT"},
		State:       PosOpen,
		TakeProfits: []TakeProfitTier{{Name: "tp1", Price: 103}},
	}
	cp := p.Clone()
	cp.TakeProfits[0].Hit = true
	cp.State = PosClosed

	if p.TakeProfits[0].Hit {
		t.Fatal("clone shares tier slice with original")
	}
	if p.State != PosOpen {
		t.Fatal("clone mutated original state")
	}
}

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionBuy, ActionSell, ActionClose} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if Action("hold").Valid() || Action("").Valid() {
		t.Fatal("unknown action accepted")
	}
}
