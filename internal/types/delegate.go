package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// DelegateInfo stores the signature of a delegate type.
type DelegateInfo struct {
	Params []TypeID
	Result TypeID
}

// RegisterDelegate creates or finds the delegate type for a signature.
func (in *Interner) RegisterDelegate(params []TypeID, result TypeID) TypeID {
	key := delegateKey(params, result)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.delIndex[key]; ok {
		return id
	}
	in.delegates = append(in.delegates, DelegateInfo{Params: slices.Clone(params), Result: result})
	slot, err := safecast.Conv[uint32](len(in.delegates) - 1)
	if err != nil {
		panic(fmt.Errorf("delegate info overflow: %w", err))
	}
	id := in.internRaw(Type{Kind: KindDelegate, Payload: slot})
	in.delIndex[key] = id
	return id
}

// DelegateInfo retrieves the signature of a delegate TypeID.
func (in *Interner) DelegateInfo(id TypeID) (DelegateInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	tt, ok := in.lookupLocked(id)
	if !ok || tt.Kind != KindDelegate || int(tt.Payload) >= len(in.delegates) {
		return DelegateInfo{}, false
	}
	info := in.delegates[tt.Payload]
	info.Params = slices.Clone(info.Params)
	return info, true
}

func delegateKey(params []TypeID, result TypeID) string {
	var sb strings.Builder
	for _, p := range params {
		sb.WriteString(strconv.FormatUint(uint64(p), 10))
		sb.WriteByte(',')
	}
	sb.WriteString("->")
	sb.WriteString(strconv.FormatUint(uint64(result), 10))
	return sb.String()
}
