package sampler

import "github.com/lonitor/lonitor/internal/model"

// counter keeps an available raw reading as the base for the next delta. An
// unavailable reading drops the base so the next delta starts from zero again.
func counter[T any](r model.Reading[T]) *T {
	if !r.Ok() {
		return nil
	}
	v := r.Value
	return &v
}

func netDelta(cur model.Reading[model.NetCounters], prev *model.NetCounters) model.Reading[model.NetDelta] {
	if !cur.Ok() {
		return model.Missing[model.NetDelta](cur.Status)
	}
	if prev == nil {
		return model.Have(model.NetDelta{})
	}
	return model.Have(model.NetDelta{
		Sent: sub(cur.Value.Sent, prev.Sent),
		Recv: sub(cur.Value.Recv, prev.Recv),
	})
}

func ioDelta(cur model.Reading[model.IOCounters], prev *model.IOCounters) model.Reading[model.IODelta] {
	if !cur.Ok() {
		return model.Missing[model.IODelta](cur.Status)
	}
	if prev == nil {
		return model.Have(model.IODelta{})
	}
	return model.Have(model.IODelta{
		Read:    sub(cur.Value.Read, prev.Read),
		Written: sub(cur.Value.Written, prev.Written),
	})
}

// sub treats a counter that went backwards (wrap, interface reset) as no traffic.
func sub(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
