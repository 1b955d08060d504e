package analyzer

// Static vocabularies. Keys of synonyms are lower-case; values are canonical.

var synonyms = map[string]string{
	// misspellings
	"komastu":   "Komatsu",
	"komatsi":   "Komatsu",
	"quingling": "Qingling",
	"qingliing": "Qingling",
	"xcmc":      "XCMG",
	"xgmc":      "XCMG",
	"sinotruck": "Sinotruk",
	"shaanxi":   "Shacman",

	// ECU shorthands
	"2880":   "CM2880",
	"cm2880": "CM2880",
	"edc7":   "EDC7",
	"edc17":  "EDC17",
	"dcm3.7": "DCM3.7",
	"c81":    "EDC17C81",

	// brand aliases
	"cat":          "Caterpillar",
	"hongyan":      "RedRock",
	"red rock":     "RedRock",
	"saic hongyan": "SAIC RedRock",
	"sany heavy":   "Sany",
	"jiefang":      "FAW",

	// component aliases
	"window lifter":  "window regulator",
	"brake switch":   "brake",
	"computer board": "ECU board",
	"pinout":         "pin definition",
	"pin out":        "pin definition",
	"pin diagram":    "pin definition",
	"fusebox":        "fuse box",
	"dashboard":      "instrument",
	"cluster":        "instrument",
}

var brands = []string{
	"Sany", "XCMG", "Caterpillar", "Komatsu", "Hitachi", "Volvo", "Doosan", "Hyundai",
	"RedRock", "SAIC RedRock", "Sinotruk", "FAW", "Dongfeng", "Foton", "Shacman", "JAC",
	"Beiben", "Hualing", "Cummins", "Bosch", "Denso", "Delphi", "Continental", "Weichai",
	"Yuchai", "Xichai", "Shangchai", "Chaochai", "Qingling", "Isuzu", "Hino", "Mitsubishi",
	"Sumitomo", "Kobelco", "Maxus", "LiuGong", "Lonking", "SDLG", "Lovol", "Shantui",
	"XGMA", "Lishide", "Sunward",
}

var ecuTypes = []string{
	"CM2880", "CM870", "CM2150", "CM2250", "CM2350", "CM570", "CM871",
	"EDC7", "EDC17", "EDC7UC31", "EDC7UC32", "EDC17C81", "EDC17C53", "EDC17C63",
	"DCM3.7", "DCM3.8", "DCM6.2",
	"MD1", "MD1CC878", "MD1CE",
	"ECM", "ECU", "VCU", "TCU",
}

var components = []string{
	// electrical
	"fuse", "fuse box", "instrument", "display", "sensor", "relay",
	"ECU board", "controller", "wiring harness", "harness", "connector", "plug",
	"pin definition", "pin", "junction box",
	// body
	"window regulator", "air conditioning", "lighting", "wiper", "horn", "door lock",
	// powertrain
	"hydraulic", "oil pump", "fuel tank", "filter", "rail pressure", "urea", "power supply",
	"engine", "gearbox", "transmission", "differential", "brake", "ABS",
	// control units
	"ECU", "ECM", "VCU", "TCU", "BCM",
}

var series = []string{
	"Hawk", "Genlyon", "Tianlong", "Tianlong KL", "Tianlong KC", "Tianlong VL", "Tianlong Flagship",
	"Delong", "Aolong", "Auman", "Chenglong", "Balong", "Howo", "Hohan", "Sitrak",
	"SY215", "SY225", "SY235", "320D", "330C", "336D", "4HK1", "6HK1",
	"C240", "C280", "C300", "C350",
}

// equipmentTypes are generic machine categories; a query naming one should
// still score documents that only mention the family word.
var equipmentTypes = []string{
	"excavator", "loader", "bulldozer", "road roller", "crane", "mixer truck", "dump truck",
}

var equipmentIndicators = []string{"excavat", "digger", "backhoe"}
