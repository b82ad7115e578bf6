package model

import (
	"strconv"
	"time"
)

// PushPayload is the raw data block of an inbound push notification (or the
// first element of the pending-assignment listing). Field names follow the
// platform's wire vocabulary, including the legacy aliases.
type PushPayload struct {
	Type string `json:"type"`
	Tipo string `json:"tipo"`

	EntregaID FlexInt64 `json:"entrega_id"`
	ID        FlexInt64 `json:"id"`

	CorridaCode   FlexString `json:"corrida_code"`
	NumeroPublico FlexString `json:"numero_publico"`
	CodigoCorrida FlexString `json:"codigo_corrida"`
	IDPublico     FlexString `json:"id_publico"`
	Numero        FlexString `json:"numero"`
	Codigo        FlexString `json:"codigo"`
	PedidoNumero  FlexString `json:"pedido_numero"`

	ClienteNome     FlexString `json:"cliente_nome"`
	Cliente         FlexString `json:"cliente"`
	ColetaEndereco  FlexString `json:"coleta_endereco"`
	Coleta          FlexString `json:"coleta"`
	EntregaEndereco FlexString `json:"entrega_endereco"`
	Entrega         FlexString `json:"entrega"`

	ValorTotalMotoboy     FlexString `json:"valor_total_motoboy"`
	Comissao              FlexString `json:"comissao"`
	ValorAdicionalMotoboy FlexString `json:"valor_adicional_motoboy"`
	ValorAdicional        FlexString `json:"valor_adicional"`

	HasRetorno FlexString `json:"has_retorno"`

	ExpiraEm         FlexString `json:"expira_em"`
	AssignDeadlineAt FlexString `json:"assign_deadline_at"`
}

// IsOffer reports whether the payload announces a delivery offer, accepting
// the current type and the legacy aliases.
func (p *PushPayload) IsOffer() bool {
	return p.Type == "new_delivery" || p.Type == "oferta_corrida" || p.Tipo == "oferta"
}

func (p *PushPayload) DeliveryID() int64 {
	if p.EntregaID != 0 {
		return p.EntregaID.Int64()
	}
	return p.ID.Int64()
}

// PublicCode resolves the display code alias chain; empty when only a
// fetch-by-id can answer.
func (p *PushPayload) PublicCode() string {
	for _, v := range []FlexString{p.CorridaCode, p.NumeroPublico, p.CodigoCorrida, p.IDPublico, p.Numero, p.Codigo, p.PedidoNumero} {
		if !v.Empty() {
			return v.String()
		}
	}
	return ""
}

func (p *PushPayload) Commission() string {
	if !p.ValorTotalMotoboy.Empty() {
		return p.ValorTotalMotoboy.String()
	}
	return p.Comissao.String()
}

func (p *PushPayload) Additional() string {
	if !p.ValorAdicionalMotoboy.Empty() {
		return p.ValorAdicionalMotoboy.String()
	}
	return p.ValorAdicional.String()
}

func (p *PushPayload) ExpiresAt() *time.Time {
	for _, v := range []FlexString{p.ExpiraEm, p.AssignDeadlineAt} {
		if v.Empty() {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return &t
		}
	}
	return nil
}

// Offer is an ephemeral, server-issued assignment proposal. A re-offer of
// the same delivery id carries a new expiry and is a distinct identity.
type Offer struct {
	DeliveryID     int64      `json:"entrega_id"`
	PublicCode     string     `json:"numero"`
	ClientName     string     `json:"cliente_nome"`
	PickupAddress  string     `json:"coleta_endereco"`
	DropoffAddress string     `json:"entrega_endereco"`
	Commission     string     `json:"valor_total_motoboy"`
	Additional     string     `json:"valor_adicional_motoboy"`
	ExpiresAt      *time.Time `json:"expira_em"`

	// HasReturn is only set when the push itself carried has_retorno;
	// nil means "derive from the additional amount until the backend answers".
	HasReturn *bool `json:"has_retorno,omitempty"`
}

// ImmediateHasReturn is the provisional return-leg guess used between accept
// and the corrective fetch: the pushed flag when present, else additional > 0.
func (o *Offer) ImmediateHasReturn() bool {
	if o.HasReturn != nil {
		return *o.HasReturn
	}
	return ParseNumberBR(o.Additional) > 0
}

// AcceptedDelivery is a delivery the courier has committed to perform.
// Provisional marks the optimistic insert that precedes the authoritative
// fetch-by-id; the corrective pass replaces the record wholesale.
// SignatureRequired is cached from the last authoritative read so the
// finalize gate still holds when a re-read fails mid-delivery.
type AcceptedDelivery struct {
	DeliveryID        int64  `json:"entrega_id"`
	PublicCode        string `json:"numero"`
	ClientName        string `json:"cliente_nome"`
	PickupAddress     string `json:"coleta_endereco"`
	DropoffAddress    string `json:"entrega_endereco"`
	Commission        string `json:"valor_total_motoboy"`
	HasReturn         bool   `json:"has_retorno"`
	SignatureRequired bool   `json:"comprovante_assinado"`
	Provisional       bool   `json:"provisional,omitempty"`
}

// DeliveryRecord is the platform's delivery document, with every alias the
// backend has been observed to emit.
type DeliveryRecord struct {
	EntregaID FlexInt64 `json:"entrega_id"`
	ID        FlexInt64 `json:"id"`

	Status FlexString `json:"status"`
	State  FlexString `json:"state"`

	CorridaCode   FlexString `json:"corrida_code"`
	NumeroPublico FlexString `json:"numero_publico"`
	CodigoCorrida FlexString `json:"codigo_corrida"`
	IDPublico     FlexString `json:"id_publico"`
	Numero        FlexString `json:"numero"`
	PedidoNumero  FlexString `json:"pedido_numero"`

	ClienteNome     FlexString `json:"cliente_nome"`
	ColetaEndereco  FlexString `json:"coleta_endereco"`
	EntregaEndereco FlexString `json:"entrega_endereco"`

	ValorTotalMotoboy     FlexString `json:"valor_total_motoboy"`
	ValorAdicionalMotoboy FlexString `json:"valor_adicional_motoboy"`

	HasRetorno           FlexString `json:"has_retorno"`
	ComprovanteAssinado  FlexString `json:"comprovante_assinado"`
	ComprovanteAssinado2 FlexString `json:"comprovanteAssinado"`
	RecebedorNome        FlexString `json:"recebedor_nome"`
	AssinaturaURL        FlexString `json:"assinatura_url"`

	MotoboyID           FlexInt64  `json:"motoboy_id"`
	AssignedToID        FlexInt64  `json:"assigned_to_id"`
	AtribuidoMotoboyID  FlexInt64  `json:"atribuido_motoboy_id"`
	AtribuidoMotoboy    FlexString `json:"atribuido_motoboy"`
	MotoboyNome         FlexString `json:"motoboy_nome"`
	Motoboy             FlexString `json:"motoboy"`
	AssignedToName      FlexString `json:"assigned_to_name"`

	AssignDeadlineAt FlexString `json:"assign_deadline_at"`
	ExpiraEm         FlexString `json:"expira_em"`
	Deadline         FlexString `json:"deadline"`
}

func (r *DeliveryRecord) DeliveryID() int64 {
	if r.EntregaID != 0 {
		return r.EntregaID.Int64()
	}
	return r.ID.Int64()
}

func (r *DeliveryRecord) NormStatus() string {
	if !r.Status.Empty() {
		return NormalizeStatus(r.Status.String())
	}
	return NormalizeStatus(r.State.String())
}

func (r *DeliveryRecord) PublicCode() string {
	for _, v := range []FlexString{r.CorridaCode, r.NumeroPublico, r.CodigoCorrida, r.IDPublico, r.Numero, r.PedidoNumero} {
		if !v.Empty() {
			return v.String()
		}
	}
	return strconv.FormatInt(r.DeliveryID(), 10)
}

// HasReturnLeg is the authoritative flag: strictly the has_retorno field,
// never inferred from amounts.
func (r *DeliveryRecord) HasReturnLeg() bool {
	return CoerceBoolStrict(r.HasRetorno.String())
}

// SignatureRequired reports whether finalize demands a signed receipt.
func (r *DeliveryRecord) SignatureRequired() bool {
	if !r.ComprovanteAssinado.Empty() {
		return CoerceBool(r.ComprovanteAssinado.String())
	}
	return CoerceBool(r.ComprovanteAssinado2.String())
}

func (r *DeliveryRecord) AssignedCourierID() int64 {
	for _, v := range []FlexInt64{r.MotoboyID, r.AssignedToID, r.AtribuidoMotoboyID} {
		if v != 0 {
			return v.Int64()
		}
	}
	return 0
}

func (r *DeliveryRecord) AssignedCourierName() string {
	for _, v := range []FlexString{r.AtribuidoMotoboy, r.MotoboyNome, r.Motoboy, r.AssignedToName} {
		if !v.Empty() {
			return v.String()
		}
	}
	return ""
}

// AssignDeadline is the assignment-hold deadline, when the backend sent one.
func (r *DeliveryRecord) AssignDeadline() *time.Time {
	for _, v := range []FlexString{r.AssignDeadlineAt, r.ExpiraEm, r.Deadline} {
		if v.Empty() {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return &t
		}
	}
	return nil
}

// StatusEntry is one row of the batch statuses listing.
type StatusEntry struct {
	EntregaID FlexInt64  `json:"entrega_id"`
	ID        FlexInt64  `json:"id"`
	Status    FlexString `json:"status"`
	State     FlexString `json:"state"`
	Situacao  FlexString `json:"situacao"`
}

func (e *StatusEntry) DeliveryID() int64 {
	if e.EntregaID != 0 {
		return e.EntregaID.Int64()
	}
	return e.ID.Int64()
}

func (e *StatusEntry) NormStatus() string {
	for _, v := range []FlexString{e.Status, e.State, e.Situacao} {
		if !v.Empty() {
			return NormalizeStatus(v.String())
		}
	}
	return StatusNovo
}

// MediaStatus is the backend's answer on proof-of-delivery artifacts. It is
// the final authority at finalize time, overriding local lock state.
type MediaStatus struct {
	HasPhotos    bool `json:"has_photos"`
	HasSignature bool `json:"has_signature"`
}

// Courier is the subset of the motoboy document the agent reads back
// (affiliation label refresh).
type Courier struct {
	ID          FlexInt64  `json:"id"`
	Nome        FlexString `json:"nome"`
	Filiacao    FlexString `json:"filiacao"`
	Filiation   FlexString `json:"filiation"`
	FiliadoA    FlexString `json:"filiado_a"`
	AtribuidoA  FlexString `json:"atribuido_a"`
	VinculadoA  FlexString `json:"vinculado_a"`
	ClienteNome FlexString `json:"cliente_nome"`
	Empresa     FlexString `json:"empresa"`
}

// Affiliation resolves the affiliation label alias chain; "Nenhum" values
// count as unset.
func (c *Courier) Affiliation() string {
	for _, v := range []FlexString{c.Filiacao, c.Filiation, c.FiliadoA, c.AtribuidoA, c.VinculadoA, c.ClienteNome, c.Empresa} {
		s := v.String()
		if !v.Empty() && s != "Nenhum" {
			return s
		}
	}
	return ""
}
