package executor

import (
	"sync"

	"github.com/elata-labs/eegpipe"
)

// mergeInputs fans multiple input edges into a single channel a worker's
// thread can select on alongside its stop/control channels. Each source
// goroutine stops forwarding as soon as stop is closed; the merged channel
// itself is closed once every source goroutine has returned.
func mergeInputs(edges []chan eegpipe.Packet, stop <-chan struct{}) <-chan eegpipe.Packet {
	out := make(chan eegpipe.Packet)
	if len(edges) == 0 {
		close(out)
		return out
	}

	var wg sync.WaitGroup
	wg.Add(len(edges))
	for _, e := range edges {
		go func(e chan eegpipe.Packet) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				case pkt, ok := <-e:
					if !ok {
						return
					}
					select {
					case out <- pkt:
					case <-stop:
						pkt.Release()
						return
					}
				}
			}
		}(e)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
