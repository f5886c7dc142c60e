// Command-line and library layout:
//
//	huestream.Facade   discover bridges, select a configuration, stream
//	stream.Session     one DTLS socket, keep-alive + input-drain workers
//	transport          DTLS-PSK dial/send/close
//	bridgeapi          bridge REST: onboarding, entertainment, lights
//	discovery          cache/mDNS/cloud bridge address discovery
//	persist            on-disk auth and bridge-cache JSON
//	model              shared data types: Bridge, EntertainmentConfiguration, LightColor
//	errs               shared error taxonomy
//
// See Example and cmd/huestream-demo for end-to-end usage.
package huestream
