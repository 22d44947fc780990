package conf

import (
	"fmt"
	"strconv"

	"github.com/gnb-control/gnbctl/internal/params"
)

// Unknown marks a field whose key is absent or whose enum code is not
// recognized. Partial configurations are expected and never abort a read.
const Unknown = "unknown"

// Snapshot is a read-only structured view of the configuration file.
// Recomputed on each read, never cached across mutations.
type Snapshot struct {
	Identity IdentityInfo `json:"identity"`
	PLMN     PLMNInfo     `json:"plmn"`
	RF       RFInfo       `json:"rf"`
	Power    PowerInfo    `json:"power"`
	SSB      SSBInfo      `json:"ssb"`
	PRACH    PRACHInfo    `json:"prach"`
	Antenna  AntennaInfo  `json:"antenna"`
	MCS      MCSInfo      `json:"mcs"`
}

// IdentityInfo holds the gNB identity fields.
type IdentityInfo struct {
	ID               string `json:"gnbId"`
	Name             string `json:"gnbName"`
	TrackingAreaCode string `json:"trackingAreaCode"`
}

// PLMNInfo holds the PLMN fields.
type PLMNInfo struct {
	MCC       string `json:"mcc"`
	MNC       string `json:"mnc"`
	MNCLength string `json:"mncLength"`
}

// RFInfo holds the RF parameters, including the derived channel bandwidth.
type RFInfo struct {
	Band                    string `json:"band"`
	AbsoluteFrequencySSB    string `json:"absoluteFrequencySsb"`
	AbsoluteFrequencyPointA string `json:"absoluteFrequencyPointA"`
	CarrierBandwidthPRB     string `json:"carrierBandwidthPrb"`
	BWPLocationAndBandwidth string `json:"bwpLocationAndBandwidth"`
	SubcarrierSpacingKHz    string `json:"subcarrierSpacingKhz"`
	BandwidthMHz            string `json:"bandwidthMhz"`
	NominalBandwidth        string `json:"nominalBandwidth"`
}

// PowerInfo holds the power and attenuation parameters.
type PowerInfo struct {
	SSBBlockPower  string `json:"ssPbchBlockPower"`
	PuschP0Nominal string `json:"puschP0Nominal"`
	PucchP0Nominal string `json:"pucchP0Nominal"`
	TxAttenuation  string `json:"attTx"`
	RxAttenuation  string `json:"attRx"`
}

// SSBInfo holds the synchronization signal block parameters.
type SSBInfo struct {
	PeriodicityMs string `json:"periodicityMs"`
	PositionsInBurst string `json:"positionsInBurst"`
}

// PRACHInfo holds the random access parameters.
type PRACHInfo struct {
	ConfigurationIndex          string `json:"configurationIndex"`
	PreambleReceivedTargetPower string `json:"preambleReceivedTargetPower"`
	ZeroCorrelationZoneConfig   string `json:"zeroCorrelationZoneConfig"`
}

// AntennaInfo holds the antenna port counts.
type AntennaInfo struct {
	PDSCHPorts string `json:"pdschPorts"`
	PUSCHPorts string `json:"puschPorts"`
}

// MCSInfo holds the scheduler MCS clamp values.
type MCSInfo struct {
	DLMin string `json:"dlMin"`
	DLMax string `json:"dlMax"`
	ULMin string `json:"ulMin"`
	ULMax string `json:"ulMax"`
}

// Reader produces snapshots of the configuration file. It never writes.
type Reader struct {
	path string
}

// NewReader creates a reader for the configuration file at path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Snapshot parses the current file. Missing keys surface as Unknown per
// field; only a file access failure returns an error.
func (r *Reader) Snapshot() (*Snapshot, error) {
	f, err := Load(r.path)
	if err != nil {
		return nil, err
	}

	get := func(key string) string {
		if v, ok := f.Get(key); ok {
			return v
		}
		return Unknown
	}

	s := &Snapshot{
		Identity: IdentityInfo{
			ID:               get("gNB_ID"),
			Name:             get("gNB_name"),
			TrackingAreaCode: get("tracking_area_code"),
		},
		PLMN: PLMNInfo{
			MCC:       get("mcc"),
			MNC:       get("mnc"),
			MNCLength: get("mnc_length"),
		},
		RF: RFInfo{
			Band:                    get("dl_frequencyBand"),
			AbsoluteFrequencySSB:    get("absoluteFrequencySSB"),
			AbsoluteFrequencyPointA: get("dl_absoluteFrequencyPointA"),
			CarrierBandwidthPRB:     get("dl_carrierBandwidth"),
			BWPLocationAndBandwidth: get("initialDLBWPlocationAndBandwidth"),
			SubcarrierSpacingKHz:    Unknown,
			BandwidthMHz:            Unknown,
			NominalBandwidth:        Unknown,
		},
		Power: PowerInfo{
			SSBBlockPower:  get("ssPBCH_BlockPower"),
			PuschP0Nominal: get("pusch_p0_Nominal"),
			PucchP0Nominal: get("pucch_p0_nominal"),
			TxAttenuation:  get("att_tx"),
			RxAttenuation:  get("att_rx"),
		},
		SSB: SSBInfo{
			PeriodicityMs:    Unknown,
			PositionsInBurst: get("ssb_PositionsInBurst_Bitmap"),
		},
		PRACH: PRACHInfo{
			ConfigurationIndex:          get("prach_ConfigurationIndex"),
			PreambleReceivedTargetPower: get("preambleReceivedTargetPower"),
			ZeroCorrelationZoneConfig:   get("zeroCorrelationZoneConfig"),
		},
		Antenna: AntennaInfo{
			PDSCHPorts: get("pdsch_AntennaPorts_XP"),
			PUSCHPorts: get("pusch_AntennaPorts"),
		},
		MCS: MCSInfo{
			DLMin: get("dl_min_mcs"),
			DLMax: get("dl_max_mcs"),
			ULMin: get("ul_min_mcs"),
			ULMax: get("ul_max_mcs"),
		},
	}

	// Derived fields: SCS enum code to kHz, then PRB count to MHz through the
	// fixed per-numerology factor table. Any unrecognized piece stays Unknown.
	if raw, ok := f.Get("dl_subcarrierSpacing"); ok {
		if code, err := strconv.Atoi(raw); err == nil {
			if khz, ok := params.SubcarrierSpacingKHz(code); ok {
				s.RF.SubcarrierSpacingKHz = strconv.Itoa(khz)
				if prb, err := strconv.Atoi(s.RF.CarrierBandwidthPRB); err == nil {
					if factor, ok := params.MHzPerPRB(khz); ok {
						s.RF.BandwidthMHz = fmt.Sprintf("%.1f", float64(prb)*factor)
					}
					if label, ok := params.NominalBandwidth(prb, khz); ok {
						s.RF.NominalBandwidth = label
					}
				}
			}
		}
	}

	if raw, ok := f.Get("ssb_periodicityServingCell"); ok {
		if code, err := strconv.Atoi(raw); err == nil {
			if ms, ok := params.SSBPeriodicityMs(code); ok {
				s.SSB.PeriodicityMs = strconv.Itoa(ms)
			}
		}
	}

	return s, nil
}
