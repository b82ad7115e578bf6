package model

import (
	"encoding/json"
	"testing"
	"time"
)

func payload(t *testing.T, js string) *PushPayload {
	t.Helper()
	var p PushPayload
	if err := json.Unmarshal([]byte(js), &p); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	return &p
}

func TestIsOffer(t *testing.T) {
	tests := []struct {
		js   string
		want bool
	}{
		{`{"type":"new_delivery"}`, true},
		{`{"type":"oferta_corrida"}`, true},
		{`{"tipo":"oferta"}`, true},
		{`{"type":"chat_message"}`, false},
		{`{}`, false},
	}
	for _, tt := range tests {
		if got := payload(t, tt.js).IsOffer(); got != tt.want {
			t.Errorf("IsOffer(%s) = %v, want %v", tt.js, got, tt.want)
		}
	}
}

func TestPushPublicCodeAliasOrder(t *testing.T) {
	// corrida_code outranks every other alias
	p := payload(t, `{"corrida_code":"A","numero_publico":"B","numero":"C"}`)
	if got := p.PublicCode(); got != "A" {
		t.Fatalf("code = %q, want A", got)
	}
	p = payload(t, `{"pedido_numero":"Z"}`)
	if got := p.PublicCode(); got != "Z" {
		t.Fatalf("code = %q, want Z", got)
	}
	if got := payload(t, `{"entrega_id":42}`).PublicCode(); got != "" {
		t.Fatalf("code = %q, want empty (fetch must resolve it)", got)
	}
}

func TestPushDeliveryIDFallsBackToID(t *testing.T) {
	if id := payload(t, `{"id":"7"}`).DeliveryID(); id != 7 {
		t.Fatalf("id = %d", id)
	}
	if id := payload(t, `{"entrega_id":3,"id":7}`).DeliveryID(); id != 3 {
		t.Fatalf("entrega_id must win, got %d", id)
	}
}

func TestPushExpiresAt(t *testing.T) {
	p := payload(t, `{"expira_em":"2030-01-02T15:04:05Z"}`)
	want := time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)
	if got := p.ExpiresAt(); got == nil || !got.Equal(want) {
		t.Fatalf("expires = %v", got)
	}
	if got := payload(t, `{"expira_em":"amanhã"}`).ExpiresAt(); got != nil {
		t.Fatalf("unparseable expiry = %v, want nil", got)
	}
	if got := payload(t, `{}`).ExpiresAt(); got != nil {
		t.Fatalf("missing expiry = %v, want nil", got)
	}
}

func TestImmediateHasReturn(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name string
		o    Offer
		want bool
	}{
		{"pushed flag wins over amount", Offer{HasReturn: &no, Additional: "15,00"}, false},
		{"pushed true", Offer{HasReturn: &yes}, true},
		{"no flag, positive additional", Offer{Additional: "15,00"}, true},
		{"no flag, zero additional", Offer{Additional: "0,00"}, false},
		{"nothing at all", Offer{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.o.ImmediateHasReturn(); got != tt.want {
				t.Fatalf("got %v", got)
			}
		})
	}
}

func TestRecordSignatureRequired(t *testing.T) {
	var rec DeliveryRecord
	if err := json.Unmarshal([]byte(`{"comprovante_assinado":1}`), &rec); err != nil {
		t.Fatal(err)
	}
	if !rec.SignatureRequired() {
		t.Fatal("comprovante_assinado=1 must require signature")
	}
	rec = DeliveryRecord{}
	if err := json.Unmarshal([]byte(`{"comprovanteAssinado":"true"}`), &rec); err != nil {
		t.Fatal(err)
	}
	if !rec.SignatureRequired() {
		t.Fatal("camelCase alias ignored")
	}
	if (&DeliveryRecord{}).SignatureRequired() {
		t.Fatal("absent flag must not require signature")
	}
}

func TestRecordHasReturnLegIsStrict(t *testing.T) {
	var rec DeliveryRecord
	if err := json.Unmarshal([]byte(`{"has_retorno":"15,00"}`), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.HasReturnLeg() {
		t.Fatal("amount must not imply a return leg on the authoritative record")
	}
}

func TestCourierAffiliation(t *testing.T) {
	var c Courier
	if err := json.Unmarshal([]byte(`{"filiacao":"Nenhum","filiado_a":"Pizzaria Central"}`), &c); err != nil {
		t.Fatal(err)
	}
	if got := c.Affiliation(); got != "Pizzaria Central" {
		t.Fatalf("affiliation = %q", got)
	}
	c = Courier{}
	if got := c.Affiliation(); got != "" {
		t.Fatalf("empty courier affiliation = %q", got)
	}
}
