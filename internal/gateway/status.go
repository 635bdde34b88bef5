package gateway

// Status is the operator-facing snapshot of the manager.
type Status struct {
	Enabled     bool            `json:"enabled"`
	InboundPath string          `json:"inboundPath"`
	Configured  int             `json:"configured"`
	Running     int             `json:"running"`
	Failed      int             `json:"failed"`
	Channels    []ChannelStatus `json:"channels"`
}

// ChannelStatus describes one supervised channel.
type ChannelStatus struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Enabled  bool   `json:"enabled"`
	Running  bool   `json:"running"`
	Endpoint string `json:"endpoint"`
	PID      int    `json:"pid,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Status reports the current supervision state. Channels appear in the
// order they were started.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Status{
		Enabled:     m.cfg.Gateway.Enabled,
		InboundPath: m.cfg.Gateway.InboundPath,
		Channels:    make([]ChannelStatus, 0, len(m.order)),
	}

	for _, id := range m.order {
		st := m.states[id]
		out.Configured++
		if st.running {
			out.Running++
		} else if st.lastError != "" {
			out.Failed++
		}
		out.Channels = append(out.Channels, ChannelStatus{
			ID:       st.descriptor.ID,
			Type:     string(st.descriptor.Type),
			Enabled:  st.descriptor.Enabled,
			Running:  st.running,
			Endpoint: st.descriptor.Endpoint.BaseURL(),
			PID:      st.pid,
			Error:    st.lastError,
		})
	}
	return out
}
