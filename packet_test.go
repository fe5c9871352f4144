package ospfd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPacketRoundTrip(t *testing.T) {
	hello := &Hello{
		NetworkMask:        0xffffff00,
		HelloInterval:      10,
		Options:            0x02,
		RouterPriority:     1,
		RouterDeadInterval: 40,
		DesignatedRouter:   0x01010101,
		BackupDesRouter:    0x01010102,
		Neighbors:          []uint32{0x02020202, 0x03030303},
	}
	p := NewPacket(TypeHello, 0x01010101, 0, hello)
	raw := Encode(p)

	got, err := Decode(raw, 0, NoAuth{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotHello, ok := got.Body.(*Hello)
	if !ok {
		t.Fatalf("Body type = %T, want *Hello", got.Body)
	}
	if diff := cmp.Diff(hello, gotHello); diff != "" {
		t.Errorf("hello round trip mismatch (-want +got):\n%s", diff)
	}
	if got.RouterID != p.RouterID || got.AreaID != p.AreaID {
		t.Errorf("header mismatch: got %+v, want %+v", got.Header, p.Header)
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	hello := &Hello{NetworkMask: 0xffffff00, HelloInterval: 10, RouterDeadInterval: 40}
	p := NewPacket(TypeHello, 1, 0, hello)
	raw := Encode(p)
	raw[12] ^= 0xff // corrupt the checksum field

	if _, err := Decode(raw, 0, NoAuth{}); err == nil {
		t.Fatal("Decode accepted a corrupted checksum")
	}
}

func TestDecodeRejectsAreaMismatch(t *testing.T) {
	hello := &Hello{NetworkMask: 0xffffff00, HelloInterval: 10, RouterDeadInterval: 40}
	p := NewPacket(TypeHello, 1, 5, hello)
	raw := Encode(p)

	if _, err := Decode(raw, 6, NoAuth{}); err == nil {
		t.Fatal("Decode accepted a packet for the wrong area")
	}
}

func TestDecodeRejectsShortPacket(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}, 0, NoAuth{}); err == nil {
		t.Fatal("Decode accepted a packet shorter than the header")
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	hello := &Hello{NetworkMask: 0xffffff00, HelloInterval: 10, RouterDeadInterval: 40}
	p := NewPacket(TypeHello, 1, 0, hello)
	raw := Encode(p)
	raw = append(raw, 0, 0, 0, 0) // header.Length no longer matches len(raw)

	if _, err := Decode(raw, 0, NoAuth{}); err == nil {
		t.Fatal("Decode accepted a packet whose length field disagreed with its size")
	}
}

func TestDBDescriptionRoundTrip(t *testing.T) {
	dd := &DBDescription{
		InterfaceMTU:     1500,
		Options:          0x02,
		Flags:            0x07,
		DDSequenceNumber: 42,
		LSAHeaders: []LSAHeader{
			{Age: 1, LSType: LSATypeRouter, LinkStateID: 0x01010101, AdvertisingRouter: 0x01010101, SequenceNumber: InitialSequenceNum, Checksum: 0xabcd, Length: 24},
		},
	}
	p := NewPacket(TypeDatabaseDescription, 1, 0, dd)
	raw := Encode(p)

	got, err := Decode(raw, 0, NoAuth{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotDD, ok := got.Body.(*DBDescription)
	if !ok {
		t.Fatalf("Body type = %T, want *DBDescription", got.Body)
	}
	if diff := cmp.Diff(dd, gotDD); diff != "" {
		t.Errorf("dbdescription round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLSRequestRoundTrip(t *testing.T) {
	lsr := &LSRequest{Entries: []LSRequestEntry{
		{LSType: uint32(LSATypeRouter), LinkStateID: 0x01010101, AdvertisingRouter: 0x01010101},
		{LSType: uint32(LSATypeNetwork), LinkStateID: 0x02020202, AdvertisingRouter: 0x01010101},
	}}
	p := NewPacket(TypeLinkStateRequest, 1, 0, lsr)
	raw := Encode(p)

	got, err := Decode(raw, 0, NoAuth{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotLSR, ok := got.Body.(*LSRequest)
	if !ok {
		t.Fatalf("Body type = %T, want *LSRequest", got.Body)
	}
	if diff := cmp.Diff(lsr, gotLSR); diff != "" {
		t.Errorf("lsrequest round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLSAckRoundTrip(t *testing.T) {
	ack := &LSAck{Headers: []LSAHeader{
		{Age: 1, LSType: LSATypeRouter, LinkStateID: 1, AdvertisingRouter: 1, SequenceNumber: InitialSequenceNum, Checksum: 1, Length: 24},
	}}
	p := NewPacket(TypeLinkStateAck, 1, 0, ack)
	raw := Encode(p)

	got, err := Decode(raw, 0, NoAuth{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotAck, ok := got.Body.(*LSAck)
	if !ok {
		t.Fatalf("Body type = %T, want *LSAck", got.Body)
	}
	if diff := cmp.Diff(ack, gotAck); diff != "" {
		t.Errorf("lsack round trip mismatch (-want +got):\n%s", diff)
	}
}
