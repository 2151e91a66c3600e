package analysis

import (
	"sort"

	"netsift/internal/models"
)

// LabelStat counts records carrying one traffic label.
type LabelStat struct {
	Label string
	Count int
}

// ProtocolStat holds stats for a single protocol.
type ProtocolStat struct {
	Protocol string
	Records  int
	Packets  int64
}

// SessionStats summarises a set of traffic records.
type SessionStats struct {
	Records    int
	Packets    int64
	Resolved   int
	Labels     []LabelStat
	Protocols  []ProtocolStat
	TopTalkers []models.TrafficRecord
}

// Summarize computes label and protocol distributions plus the busiest
// endpoints by packet count.
func Summarize(records []models.TrafficRecord, topN int) SessionStats {
	st := SessionStats{Records: len(records)}
	labels := make(map[string]int)
	protos := make(map[string]*ProtocolStat)

	for _, r := range records {
		st.Packets += r.PacketCount
		if r.HasDomain() {
			st.Resolved++
		}

		label := r.TrafficType
		if label == "" {
			label = LabelIdle
		}
		labels[label]++

		ps, ok := protos[r.Protocol]
		if !ok {
			ps = &ProtocolStat{Protocol: r.Protocol}
			protos[r.Protocol] = ps
		}
		ps.Records++
		ps.Packets += r.PacketCount
	}

	for label, n := range labels {
		st.Labels = append(st.Labels, LabelStat{Label: label, Count: n})
	}
	sort.Slice(st.Labels, func(i, j int) bool {
		if st.Labels[i].Count != st.Labels[j].Count {
			return st.Labels[i].Count > st.Labels[j].Count
		}
		return st.Labels[i].Label < st.Labels[j].Label
	})

	for _, ps := range protos {
		st.Protocols = append(st.Protocols, *ps)
	}
	sort.Slice(st.Protocols, func(i, j int) bool {
		if st.Protocols[i].Packets != st.Protocols[j].Packets {
			return st.Protocols[i].Packets > st.Protocols[j].Packets
		}
		return st.Protocols[i].Protocol < st.Protocols[j].Protocol
	})

	top := make([]models.TrafficRecord, len(records))
	copy(top, records)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].PacketCount > top[j].PacketCount
	})
	if topN >= 0 && len(top) > topN {
		top = top[:topN]
	}
	st.TopTalkers = top

	return st
}
