package sensor

// Snapshot is immutable copy of packet sequence, safe to pass between goroutines.
type Snapshot struct {
	packets []Packet
	seq     uint64
}

func NewSnapshot(seq uint64, ps []Packet) Snapshot {
	cp := make([]Packet, len(ps))
	copy(cp, ps)
	return Snapshot{packets: cp, seq: seq}
}

// Packets returns a copy.
func (s Snapshot) Packets() []Packet {
	cp := make([]Packet, len(s.packets))
	copy(cp, s.packets)
	return cp
}

func (s Snapshot) Len() int     { return len(s.packets) }
func (s Snapshot) Seq() uint64  { return s.seq }
func (s Snapshot) IsZero() bool { return s.packets == nil }

// Latest is single slot mailbox between one producer (Poller) and one consumer (uplink).
// Publish never blocks and replaces unread value.
// Take never blocks and returns newest published snapshot, or previous one if nothing new.
type Latest struct {
	ch   chan Snapshot
	last Snapshot // consumer goroutine only
}

func NewLatest(initial Snapshot) *Latest {
	l := &Latest{ch: make(chan Snapshot, 1)}
	l.ch <- initial
	return l
}

func (l *Latest) Publish(s Snapshot) {
	for {
		select {
		case l.ch <- s:
			return
		default:
		}
		// drop stale unread value
		select {
		case <-l.ch:
		default:
		}
	}
}

func (l *Latest) Take() Snapshot {
	select {
	case s := <-l.ch:
		l.last = s
	default:
	}
	return l.last
}
