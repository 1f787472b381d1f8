package shutdown

import "os"

// defaultSignals lists the termination signals watched by Install. Platform
// files extend it.
var defaultSignals = []os.Signal{os.Interrupt}
