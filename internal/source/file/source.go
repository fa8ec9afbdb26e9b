// Package file replays UDP datagrams from pcap and pcapng capture files.
// Fragmented IPv4 datagrams are reassembled, so large SIP messages sent over
// UDP come out whole.
package file

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/ip4defrag"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/aptx/internal/log"
)

// fragmentTimeout bounds how long incomplete fragment lists are kept,
// measured in capture time.
const fragmentTimeout = 30 * time.Second

var decodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

// Datagram is one UDP payload with its addressing.
type Datagram struct {
	Timestamp time.Time
	Src       netip.AddrPort
	Dst       netip.AddrPort
	Payload   []byte
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads a capture file packet by packet.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
	defrag *ip4defrag.IPv4Defragmenter
}

// Open opens a capture file, classic pcap or pcapng.
func Open(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	var r packetReader
	if pr, err := pcapgo.NewReader(f); err == nil {
		r = pr
	} else {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			f.Close()
			return nil, fmt.Errorf("failed to rewind capture file %s: %w", path, serr)
		}
		ng, ngErr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
		if ngErr != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read capture file %s: %w", path, errors.Join(err, ngErr))
		}
		r = ng
	}

	return &Source{
		path:   path,
		file:   f,
		reader: r,
		defrag: ip4defrag.NewIPv4Defragmenter(),
	}, nil
}

// LinkType returns the link layer of the capture.
func (s *Source) LinkType() layers.LinkType {
	return s.reader.LinkType()
}

// Next returns the next UDP datagram, skipping every other packet.
// It returns io.EOF at the end of the file.
func (s *Source) Next() (Datagram, error) {
	for {
		data, ci, err := s.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Datagram{}, io.EOF
			}
			return Datagram{}, fmt.Errorf("failed to read packet: %w", err)
		}
		if dg, ok := s.decode(data, ci); ok {
			return dg, nil
		}
	}
}

// Close closes the capture file.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Source) decode(data []byte, ci gopacket.CaptureInfo) (Datagram, bool) {
	pkt := gopacket.NewPacket(data, s.reader.LinkType(), decodeOptions)

	var src, dst netip.Addr
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		src, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		dst, _ = netip.AddrFromSlice(ip.DstIP.To4())
		if ip.Flags&layers.IPv4MoreFragments != 0 || ip.FragOffset != 0 {
			whole, ok := s.reassemble(ip, ci.Timestamp)
			if !ok {
				return Datagram{}, false
			}
			pkt = gopacket.NewPacket(whole.Payload, whole.NextLayerType(), decodeOptions)
		}
	case *layers.IPv6:
		src, _ = netip.AddrFromSlice(ip.SrcIP)
		dst, _ = netip.AddrFromSlice(ip.DstIP)
	default:
		return Datagram{}, false
	}

	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return Datagram{}, false
	}

	return Datagram{
		Timestamp: ci.Timestamp,
		Src:       netip.AddrPortFrom(src, uint16(udp.SrcPort)),
		Dst:       netip.AddrPortFrom(dst, uint16(udp.DstPort)),
		Payload:   udp.Payload,
	}, true
}

// reassemble feeds a fragment to the defragmenter and returns the datagram
// once every fragment has arrived.
func (s *Source) reassemble(ip *layers.IPv4, ts time.Time) (*layers.IPv4, bool) {
	s.defrag.DiscardOlderThan(ts.Add(-fragmentTimeout))

	whole, err := s.defrag.DefragIPv4WithTimestamp(ip, ts)
	if err != nil {
		log.GetLogger().WithError(err).Debugf("file: dropped fragment %s -> %s id %d", ip.SrcIP, ip.DstIP, ip.Id)
		return nil, false
	}
	return whole, whole != nil
}
