package grpcsvc

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
)

// Sock описывает партию носков в сообщениях gRPC.
type Sock struct {
	ID               int64
	Color            string
	Size             string
	CottonPercentage int
	Quantity         int
}

type AddSocksRequest struct {
	Sock Sock
}

type GetSocksRequest struct {
	ID int64
}

type GetSocksByColorRequest struct {
	Color string
}

type GetSocksBySizeRequest struct {
	Size string
}

type GetSocksByCompositionRequest struct {
	CottonPercentage int
}

type ListSocksRequest struct{}

type ListSocksResponse struct {
	Socks []Sock
}

// CountSocksRequest — фильтр суммирования; nil-поля не ограничивают выборку.
// На проводе это proto3 optional поля: отсутствие и ноль различаются.
type CountSocksRequest struct {
	Color     *string
	Size      *string
	CottonMin *int
	CottonMax *int
}

type CountSocksResponse struct {
	Quantity int
}

// SellSocksRequest: партия выбирается по параметрам Sock, ID передаётся как есть.
type SellSocksRequest struct {
	ID   int64
	Sock Sock
}

type SellSocksResponse struct {
	Sock    Sock
	Message string
}

type DeleteSocksRequest struct {
	ID int64
}

// SockResponse возвращают операции над одной партией.
type SockResponse struct {
	Sock Sock
}

func (*Sock) protoName() protoreflect.Name { return "Sock" }

func (s *Sock) writeTo(m protoreflect.Message) {
	setInt64(m, "id", s.ID)
	setString(m, "color", s.Color)
	setString(m, "size", s.Size)
	setInt32(m, "cotton_percentage", s.CottonPercentage)
	setInt64(m, "quantity", int64(s.Quantity))
}

func (s *Sock) readFrom(m protoreflect.Message) {
	s.ID = getInt64(m, "id")
	s.Color = getString(m, "color")
	s.Size = getString(m, "size")
	s.CottonPercentage = getInt(m, "cotton_percentage")
	s.Quantity = getInt(m, "quantity")
}

func (*AddSocksRequest) protoName() protoreflect.Name      { return "AddSocksRequest" }
func (r *AddSocksRequest) writeTo(m protoreflect.Message)  { setMessage(m, "sock", &r.Sock) }
func (r *AddSocksRequest) readFrom(m protoreflect.Message) { getMessage(m, "sock", &r.Sock) }

func (*GetSocksRequest) protoName() protoreflect.Name      { return "GetSocksRequest" }
func (r *GetSocksRequest) writeTo(m protoreflect.Message)  { setInt64(m, "id", r.ID) }
func (r *GetSocksRequest) readFrom(m protoreflect.Message) { r.ID = getInt64(m, "id") }

func (*GetSocksByColorRequest) protoName() protoreflect.Name     { return "GetSocksByColorRequest" }
func (r *GetSocksByColorRequest) writeTo(m protoreflect.Message) { setString(m, "color", r.Color) }
func (r *GetSocksByColorRequest) readFrom(m protoreflect.Message) {
	r.Color = getString(m, "color")
}

func (*GetSocksBySizeRequest) protoName() protoreflect.Name      { return "GetSocksBySizeRequest" }
func (r *GetSocksBySizeRequest) writeTo(m protoreflect.Message)  { setString(m, "size", r.Size) }
func (r *GetSocksBySizeRequest) readFrom(m protoreflect.Message) { r.Size = getString(m, "size") }

func (*GetSocksByCompositionRequest) protoName() protoreflect.Name {
	return "GetSocksByCompositionRequest"
}

func (r *GetSocksByCompositionRequest) writeTo(m protoreflect.Message) {
	setInt32(m, "cotton_percentage", r.CottonPercentage)
}

func (r *GetSocksByCompositionRequest) readFrom(m protoreflect.Message) {
	r.CottonPercentage = getInt(m, "cotton_percentage")
}

func (*ListSocksRequest) protoName() protoreflect.Name  { return "ListSocksRequest" }
func (*ListSocksRequest) writeTo(protoreflect.Message)  {}
func (*ListSocksRequest) readFrom(protoreflect.Message) {}

func (*ListSocksResponse) protoName() protoreflect.Name { return "ListSocksResponse" }

func (r *ListSocksResponse) writeTo(m protoreflect.Message) {
	if len(r.Socks) == 0 {
		return
	}
	list := m.Mutable(field(m, "socks")).List()
	for i := range r.Socks {
		item := list.NewElement()
		r.Socks[i].writeTo(item.Message())
		list.Append(item)
	}
}

func (r *ListSocksResponse) readFrom(m protoreflect.Message) {
	list := m.Get(field(m, "socks")).List()
	r.Socks = make([]Sock, list.Len())
	for i := range r.Socks {
		r.Socks[i].readFrom(list.Get(i).Message())
	}
}

func (*CountSocksRequest) protoName() protoreflect.Name { return "CountSocksRequest" }

func (r *CountSocksRequest) writeTo(m protoreflect.Message) {
	if r.Color != nil {
		m.Set(field(m, "color"), protoreflect.ValueOfString(*r.Color))
	}
	if r.Size != nil {
		m.Set(field(m, "size"), protoreflect.ValueOfString(*r.Size))
	}
	if r.CottonMin != nil {
		m.Set(field(m, "cotton_min"), protoreflect.ValueOfInt32(int32(*r.CottonMin))) //nolint:gosec // percent.
	}
	if r.CottonMax != nil {
		m.Set(field(m, "cotton_max"), protoreflect.ValueOfInt32(int32(*r.CottonMax))) //nolint:gosec // percent.
	}
}

func (r *CountSocksRequest) readFrom(m protoreflect.Message) {
	r.Color = optionalString(m, "color")
	r.Size = optionalString(m, "size")
	r.CottonMin = optionalInt(m, "cotton_min")
	r.CottonMax = optionalInt(m, "cotton_max")
}

func (*CountSocksResponse) protoName() protoreflect.Name { return "CountSocksResponse" }

func (r *CountSocksResponse) writeTo(m protoreflect.Message) {
	setInt64(m, "quantity", int64(r.Quantity))
}

func (r *CountSocksResponse) readFrom(m protoreflect.Message) { r.Quantity = getInt(m, "quantity") }

func (*SellSocksRequest) protoName() protoreflect.Name { return "SellSocksRequest" }

func (r *SellSocksRequest) writeTo(m protoreflect.Message) {
	setInt64(m, "id", r.ID)
	setMessage(m, "sock", &r.Sock)
}

func (r *SellSocksRequest) readFrom(m protoreflect.Message) {
	r.ID = getInt64(m, "id")
	getMessage(m, "sock", &r.Sock)
}

func (*SellSocksResponse) protoName() protoreflect.Name { return "SellSocksResponse" }

func (r *SellSocksResponse) writeTo(m protoreflect.Message) {
	setMessage(m, "sock", &r.Sock)
	setString(m, "message", r.Message)
}

func (r *SellSocksResponse) readFrom(m protoreflect.Message) {
	getMessage(m, "sock", &r.Sock)
	r.Message = getString(m, "message")
}

func (*DeleteSocksRequest) protoName() protoreflect.Name      { return "DeleteSocksRequest" }
func (r *DeleteSocksRequest) writeTo(m protoreflect.Message)  { setInt64(m, "id", r.ID) }
func (r *DeleteSocksRequest) readFrom(m protoreflect.Message) { r.ID = getInt64(m, "id") }

func (*SockResponse) protoName() protoreflect.Name      { return "SockResponse" }
func (r *SockResponse) writeTo(m protoreflect.Message)  { setMessage(m, "sock", &r.Sock) }
func (r *SockResponse) readFrom(m protoreflect.Message) { getMessage(m, "sock", &r.Sock) }

func toMessage(sock domain.Sock) Sock {
	return Sock{
		ID:               sock.ID,
		Color:            string(sock.Color),
		Size:             string(sock.Size),
		CottonPercentage: sock.Composition.CottonPercentage,
		Quantity:         sock.Quantity,
	}
}

func (m Sock) toDomain() (domain.Sock, error) {
	color, err := domain.ParseColor(m.Color)
	if err != nil {
		return domain.Sock{}, err
	}
	size, err := domain.ParseSize(m.Size)
	if err != nil {
		return domain.Sock{}, err
	}
	return domain.Sock{
		ID:          m.ID,
		Color:       color,
		Size:        size,
		Composition: domain.Composition{CottonPercentage: m.CottonPercentage},
		Quantity:    m.Quantity,
	}, nil
}
