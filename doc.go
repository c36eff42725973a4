/*
Package muxio is an event-driven I/O readiness multiplexer. It makes direct
epoll and kqueue syscalls rather than going through the standard Go net
package, and works in the manner of the classic readiness selectors found in
netty, libuv and the JDK's NIO layer.

muxio is the reactor primitive, not the reactor: it tells one goroutine which
of many registered descriptors are ready for which operations, and leaves all
actual I/O to the caller. Resources take part in selection by implementing
the Channel capability contract, which pins their descriptor and translates
between muxio's portable operation bits and the native event bits of the
poller.

The lifecycle is registration, selection, consumption:

	sel, err := muxio.Open()
	if err != nil {
		log.Fatal(err)
	}
	defer sel.Close()

	key, err := sel.Register(ch, muxio.OpRead, nil)
	if err != nil {
		log.Fatal(err)
	}

	selected, err := sel.SelectedKeys()
	if err != nil {
		log.Fatal(err)
	}

	for {
		n, err := sel.Select()
		if err != nil {
			log.Fatal(err)
		}
		if n == 0 {
			continue // woken up, nothing selected
		}
		for _, k := range selected.Keys() {
			ready, _ := k.ReadyOps()
			handle(k.Channel(), ready)
			selected.Remove(k)
		}
	}

	_ = key

Any goroutine may register channels, adjust interest, cancel keys or call
Wakeup while another is blocked in Select, only the select cycle itself is
single-flight. Cancelled keys are unwound lazily by the next cycle, exactly
like the selectors this package descends from.
*/
package muxio
