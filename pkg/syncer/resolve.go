package syncer

// Winner names the copy that resolution kept.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// Resolve decides which of two copies of the same entity is authoritative.
//
//   - order: a kitchen-side update beats a point-of-sale one, else newest wins.
//   - inventory: automatic beats manual; when both set the same field the
//     lower value wins; else newest wins.
//   - anything else: newest wins.
//
// Timestamp ties go to the remote copy.
func Resolve(local, remote Record) (Record, Winner) {
	var w Winner
	switch remote.Kind {
	case KindOrder:
		w = resolveOrder(local, remote)
	case KindInventory:
		w = resolveInventory(local, remote)
	default:
		w = newest(local, remote)
	}
	if w == WinnerLocal {
		return local, w
	}
	return remote, w
}

func resolveOrder(local, remote Record) Winner {
	localKitchen := local.Station == StationKitchen
	remoteKitchen := remote.Station == StationKitchen
	switch {
	case localKitchen && !remoteKitchen:
		return WinnerLocal
	case remoteKitchen && !localKitchen:
		return WinnerRemote
	}
	return newest(local, remote)
}

func resolveInventory(local, remote Record) Winner {
	switch {
	case remote.Automatic && !local.Automatic:
		return WinnerRemote
	case local.Automatic && !remote.Automatic:
		return WinnerLocal
	}
	if local.Field != "" && local.Field == remote.Field && local.Value != remote.Value {
		if remote.Value < local.Value {
			return WinnerRemote
		}
		return WinnerLocal
	}
	return newest(local, remote)
}

func newest(local, remote Record) Winner {
	if local.Timestamp > remote.Timestamp {
		return WinnerLocal
	}
	return WinnerRemote
}
