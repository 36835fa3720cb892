// Package dot contains a DNS-over-TLS responder answering A and AAAA
// queries from a static table. Names not in the table get NXDOMAIN.
//
// Messages use the two bytes length framing of DNS over TCP (RFC 1035
// section 4.2.2), which DNS over TLS inherits.
package dot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/m-lab/go/rtx"
	"github.com/miekg/dns"
	"github.com/ooni/netsrv/model"
)

// DefaultTTL is the TTL used when none is configured.
const DefaultTTL = 300

// Responder is the DNS-over-TLS responder.
type Responder struct {
	records map[string][]net.IP
	ttl     uint32
}

// New creates a responder answering with records, which maps domain
// names to IPv4 and IPv6 addresses. A zero ttl means DefaultTTL.
func New(records map[string][]string, ttl uint32) (*Responder, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	r := &Responder{records: make(map[string][]net.IP), ttl: ttl}
	for name, addrs := range records {
		if _, ok := dns.IsDomainName(name); !ok {
			return nil, fmt.Errorf("dot: invalid domain name: %s", name)
		}
		key := strings.ToLower(dns.Fqdn(name))
		ips := r.records[key]
		for _, addr := range addrs {
			ip := net.ParseIP(addr)
			if ip == nil {
				return nil, fmt.Errorf("dot: invalid address for %s: %s", name, addr)
			}
			ips = append(ips, ip)
		}
		r.records[key] = ips
	}
	return r, nil
}

// Reply builds the reply to query.
func (r *Responder) Reply(query *dns.Msg) *dns.Msg {
	reply := new(dns.Msg)
	if query.Opcode != dns.OpcodeQuery {
		return reply.SetRcode(query, dns.RcodeNotImplemented)
	}
	if len(query.Question) != 1 {
		return reply.SetRcode(query, dns.RcodeFormatError)
	}
	reply.SetReply(query)
	reply.Authoritative = true
	q := query.Question[0]
	ips, found := r.records[strings.ToLower(q.Name)]
	if !found {
		return reply.SetRcode(query, dns.RcodeNameError)
	}
	for _, ip := range ips {
		header := dns.RR_Header{Name: q.Name, Class: dns.ClassINET, Ttl: r.ttl}
		switch {
		case q.Qtype == dns.TypeA && ip.To4() != nil:
			header.Rrtype = dns.TypeA
			reply.Answer = append(reply.Answer, &dns.A{Hdr: header, A: ip.To4()})
		case q.Qtype == dns.TypeAAAA && ip.To4() == nil:
			header.Rrtype = dns.TypeAAAA
			reply.Answer = append(reply.Answer, &dns.AAAA{Hdr: header, AAAA: ip})
		}
	}
	return reply
}

// Serve answers the queries arriving on session until the peer stops
// sending them or an error occurs. A query that does not parse ends
// the session.
func (r *Responder) Serve(ctx context.Context, session model.Session) error {
	reader := bufio.NewReader(session)
	for ctx.Err() == nil {
		data, err := ReadMessage(reader)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		query := new(dns.Msg)
		if err := query.Unpack(data); err != nil {
			return err
		}
		data, err = r.Reply(query).Pack()
		if err != nil {
			return err
		}
		if err := WriteMessage(session, data); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// ReadMessage reads a length-prefixed DNS message.
func ReadMessage(r io.Reader) (msg []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil // we already got the error just clear the message
		}
	}()
	header := make([]byte, 2)
	_, err = io.ReadFull(r, header)
	rtx.PanicOnError(err, "io.ReadFull failed for header")
	length := int(header[0])<<8 | int(header[1])
	msg = make([]byte, length)
	_, err = io.ReadFull(r, msg)
	rtx.PanicOnError(err, "io.ReadFull failed for message")
	return msg, nil
}

// WriteMessage writes msg prefixed by its length.
func WriteMessage(w io.Writer, msg []byte) (err error) {
	if len(msg) > dns.MaxMsgSize {
		return errors.New("dot: message too large")
	}
	defer func() {
		recover() // we already got the error
	}()
	writer := bufio.NewWriter(w)
	err = writer.WriteByte(byte(len(msg) >> 8))
	rtx.PanicOnError(err, "writer.WriteByte failed for first byte")
	err = writer.WriteByte(byte(len(msg)))
	rtx.PanicOnError(err, "writer.WriteByte failed for second byte")
	_, err = writer.Write(msg)
	rtx.PanicOnError(err, "writer.Write failed for message")
	err = writer.Flush()
	rtx.PanicOnError(err, "writer.Flush failed")
	return nil
}
