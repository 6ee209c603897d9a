package blocks

import (
	"errors"
	"net/netip"
	"time"
)

type Type string

const (
	TypeAccount Type = "account"
	TypeIP      Type = "ip"
	TypeBoth    Type = "both"
)

type Status string

const (
	StatusActive Status = "active"
	StatusLifted Status = "lifted"
)

// Block impide reservar online a un paciente, a una IP/rango, o a ambos.
type Block struct {
	ID   string
	Type Type

	PatientID string
	IPRule    string // "203.0.113.7/32", "10.0.0.0/8", "2001:db8::/32" (normalizado)

	Reason string
	Status Status

	CreatedBy string
	CreatedAt time.Time

	LiftedBy string
	LiftedAt *time.Time
}

// Matches aplica sólo a bloqueos activos.
func (b Block) Matches(patientID string, ip netip.Addr) bool {
	if b.Status != StatusActive {
		return false
	}

	accountHit := patientID != "" && b.PatientID == patientID
	ipHit := false
	if ip.IsValid() && b.IPRule != "" {
		if p, err := netip.ParsePrefix(b.IPRule); err == nil {
			ipHit = p.Contains(ip.Unmap())
		}
	}

	switch b.Type {
	case TypeAccount:
		return accountHit
	case TypeIP:
		return ipHit
	case TypeBoth:
		return accountHit || ipHit
	default:
		return false
	}
}

var errMappedPrefix = errors.New("ipv4-mapped prefix shorter than /96")

// ParseRule acepta una IP suelta o un CIDR y devuelve el prefijo enmascarado.
func ParseRule(raw string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(raw); err == nil {
		if p.Addr().Is4In6() {
			// el prefijo debe caer dentro de ::ffff:0:0/96
			if p.Bits() < 96 {
				return netip.Prefix{}, errMappedPrefix
			}
			p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}
