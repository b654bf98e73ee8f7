package pvs

// ResultSucceed is the value of the top-level result field on a good reply.
const ResultSucceed = "succeed"

// DeviceEntry is one element of the devices array as the PVS serves it. All
// numeric channels arrive as strings; parsing happens in the extractor so a
// single garbled field cannot take down the whole payload.
type DeviceEntry struct {
	DeviceType string `json:"DEVICE_TYPE"`
	Type       string `json:"TYPE"`
	Serial     string `json:"SERIAL"`
	State      string `json:"STATE"`
	StateDescr string `json:"STATEDESCR"`
	Descr      string `json:"DESCR"`

	// Device clock, comma-separated: YYYY,MM,DD,HH,MM,SS
	DataTime string `json:"DATATIME"`

	PowerKw       string `json:"p_3phsum_kw"`
	LifetimeKwh   string `json:"ltea_3phsum_kwh"`
	NetLteaKwh    string `json:"net_ltea_3phsum_kwh"`
	MpptVoltageV  string `json:"v_mppt1_v"`
	MpptCurrentA  string `json:"i_mppt1_a"`
	HeatsinkTempC string `json:"t_htsnk_degc"`
	FrequencyHz   string `json:"freq_hz"`
}

// RawPayload is the decoded device response. Both the authenticated varserver
// endpoint and the legacy dl_cgi endpoint produce this shape.
type RawPayload struct {
	Result  string        `json:"result"`
	Devices []DeviceEntry `json:"devices"`
}
