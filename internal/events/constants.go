package events

// DirectReferrer is the source name used for page views without a referrer.
const DirectReferrer = "Direct"

// Known device classes. The set is open; trackers may send other values.
const (
	DeviceMobile  = "Mobile"
	DeviceDesktop = "Desktop"
	DeviceTablet  = "Tablet"
)
