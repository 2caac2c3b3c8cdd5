package parser

import "testing"

func TestWasmByAction(t *testing.T) {
	events := []Event{
		{Type: "message", Attrs: EventAttrs{"action": "create_pair"}},
		{Type: "wasm", Attrs: EventAttrs{"action": "create_pair", "pair": "uzig-factory/x/coin"}},
		{Type: "wasm", Attrs: EventAttrs{"action": "swap", "offer_amount": "1000000"}},
		{Type: "wasm", Attrs: EventAttrs{"action": "create_pair", "pair": "a-b"}},
	}

	got := WasmByAction(events, "create_pair")
	if len(got) != 2 {
		t.Fatalf("expected 2 create_pair wasm events, got %d", len(got))
	}
	if got[0].Attrs["pair"] != "uzig-factory/x/coin" || got[1].Attrs["pair"] != "a-b" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestBuildMsgSenderMap(t *testing.T) {
	events := []Event{
		{Type: "message", Attrs: EventAttrs{"sender": "zig1aaa"}},
		{Type: "message", Attrs: EventAttrs{"module": "wasm"}},
		{Type: "message", Attrs: EventAttrs{"sender": "zig1bbb", "msg_index": "5"}},
	}
	m := BuildMsgSenderMap(events)
	if m[0] != "zig1aaa" {
		t.Errorf("expected msg_index 0 -> zig1aaa, got %q", m[0])
	}
	if m[5] != "zig1bbb" {
		t.Errorf("expected explicit msg_index 5 -> zig1bbb, got %q", m[5])
	}
}

func TestNormalizePair(t *testing.T) {
	cases := []struct {
		in   string
		want Pair
	}{
		{"factory/zig1.../abc-uzig", Pair{Base: "factory/zig1.../abc", Quote: "uzig"}},
		{"uzig-factory/zig1.../abc", Pair{Base: "factory/zig1.../abc", Quote: "uzig"}},
		{"aaa, bbb", Pair{Base: "aaa", Quote: "bbb"}},
		{"zzz, aaa", Pair{Base: "aaa", Quote: "zzz"}},
		{"aaa, aaa", Pair{Base: "aaa", Quote: "aaa"}},
	}
	for _, c := range cases {
		got := NormalizePair(c.in)
		if got != c.want {
			t.Errorf("NormalizePair(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseReservesKV(t *testing.T) {
	legs := ParseReservesKV("1000000uzig, 250000factory/zig1xyz/coin")
	if legs[0].Denom != "uzig" || legs[0].Amount == nil || *legs[0].Amount != "1000000" {
		t.Errorf("leg0 = %+v", legs[0])
	}
	if legs[1].Denom != "factory/zig1xyz/coin" || legs[1].Amount == nil || *legs[1].Amount != "250000" {
		t.Errorf("leg1 = %+v", legs[1])
	}
}

func TestParseReservesKVMissingLeg(t *testing.T) {
	legs := ParseReservesKV("1000000uzig")
	if legs[0].Amount == nil {
		t.Fatalf("expected leg0 parsed")
	}
	if legs[1].Amount != nil {
		t.Errorf("expected leg1 nil, got %+v", legs[1])
	}
}

func TestParseAssetsList(t *testing.T) {
	raw := `[
		{"info":{"native_token":{"denom":"uzig"}},"amount":"1000000"},
		{"info":{"token":{"contract_addr":"zig1cw20..."}},"amount":"42"}
	]`
	legs := ParseAssetsList(raw)
	if legs[0].Denom != "uzig" || *legs[0].Amount != "1000000" {
		t.Errorf("leg0 = %+v", legs[0])
	}
	if legs[1].Denom != "zig1cw20..." || *legs[1].Amount != "42" {
		t.Errorf("leg1 = %+v", legs[1])
	}
}

func TestParseAssetsListMalformed(t *testing.T) {
	legs := ParseAssetsList("not json")
	if legs[0].Amount != nil || legs[1].Amount != nil {
		t.Errorf("expected both legs nil on malformed input, got %+v", legs)
	}
}

func TestDigitsOrNull(t *testing.T) {
	cases := map[string]bool{
		"123":     true,
		"0":       true,
		"":        false,
		"-1":      false,
		"1.5":     false,
		"12a":     false,
	}
	for in, wantOK := range cases {
		got := DigitsOrNull(in)
		if wantOK && (got == nil || *got != in) {
			t.Errorf("DigitsOrNull(%q) = %v, want non-nil %q", in, got, in)
		}
		if !wantOK && got != nil {
			t.Errorf("DigitsOrNull(%q) = %q, want nil", in, *got)
		}
	}
}

func TestSha256Hex(t *testing.T) {
	got := Sha256Hex([]byte("hello"))
	want := "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"
	if got != want {
		t.Errorf("Sha256Hex(hello) = %s, want %s", got, want)
	}
}
