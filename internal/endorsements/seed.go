package endorsements

// seedCode maps one numeric upstream code to the endorsement name(s) it
// resolves to; a code maps to more than one name when the upstream semantic
// is a bundle (e.g. 320 ≡ BEER DISTRIBUTOR + WINE DISTRIBUTOR). Hand-curated
// from cross-references; codes that never appear with a text cross-reference
// remain placeholders forever.
type seedCode struct {
	code  string
	names []string
}

var seedCodes = []seedCode{
	{"010", []string{"RESTAURANT - BEER/WINE"}},
	{"011", []string{"RESTAURANT - SPIRITS/BEER/WINE"}},
	{"012", []string{"TAVERN"}},
	{"015", []string{"GROCERY STORE - BEER/WINE"}},
	{"016", []string{"GROCERY STORE - SPIRITS/BEER/WINE"}},
	{"020", []string{"BEER/WINE SPECIALTY SHOP"}},
	{"024", []string{"HOTEL/MOTEL"}},
	{"026", []string{"CLUB"}},
	{"035", []string{"CATERER"}},
	{"040", []string{"SPIRITS, BEER & WINE RESTAURANT LOUNGE"}},
	{"045", []string{"SPIRITS RETAILER"}},
	{"050", []string{"DOMESTIC WINERY"}},
	{"051", []string{"DOMESTIC WINERY LESS THAN 250,000 LITERS"}},
	{"060", []string{"DOMESTIC BREWERY"}},
	{"061", []string{"DOMESTIC BREWERY LESS THAN 60,000 BARRELS"}},
	{"070", []string{"DISTILLERY"}},
	{"075", []string{"CRAFT DISTILLERY"}},
	{"080", []string{"BEER DISTRIBUTOR"}},
	{"081", []string{"WINE DISTRIBUTOR"}},
	{"090", []string{"BEER IMPORTER"}},
	{"091", []string{"WINE IMPORTER"}},
	{"100", []string{"SPIRITS DISTRIBUTOR"}},
	{"110", []string{"SNACK BAR"}},
	{"120", []string{"FARMERS MARKET"}},
	{"130", []string{"SPECIAL OCCASION LICENSE"}},
	{"140", []string{"SPORTS/ENTERTAINMENT FACILITY"}},
	{"150", []string{"PUBLIC HOUSE"}},
	{"160", []string{"NONPROFIT ARTS ORGANIZATION"}},
	{"170", []string{"MOTOR VESSEL"}},
	{"180", []string{"RAILROAD CAR"}},
	{"190", []string{"PRIVATE CLUB"}},
	{"200", []string{"FRATERNAL ORGANIZATION"}},
	{"210", []string{"SPIRITS SAMPLING ENDORSEMENT"}},
	{"220", []string{"BEER/WINE SAMPLING ENDORSEMENT"}},
	{"230", []string{"DIRECT SHIPMENT RECEIVER"}},
	{"240", []string{"WINE RETAILER REWAREHOUSE"}},
	{"250", []string{"BEER/WINE PRIVATE DELIVERY"}},
	{"260", []string{"SPIRITS CURBSIDE/DELIVERY"}},
	{"270", []string{"CIDER PRODUCER"}},
	{"280", []string{"MEAD PRODUCER"}},
	{"290", []string{"SPIRITS CERTIFICATE OF APPROVAL"}},
	{"300", []string{"BEER CERTIFICATE OF APPROVAL"}},
	{"310", []string{"WINE CERTIFICATE OF APPROVAL"}},
	{"320", []string{"BEER DISTRIBUTOR", "WINE DISTRIBUTOR"}},
	{"330", []string{"SPIRITS, BEER, WINE TASTING ROOM"}},
	{"340", []string{"CANNABIS PRODUCER"}},
	{"350", []string{"CANNABIS PROCESSOR"}},
	{"360", []string{"CANNABIS TRANSPORTATION"}},
	{"370", []string{"CANNABIS RESEARCH"}},
	{"380", []string{"MARIJUANA TESTING LAB"}},
	{"390", []string{"CANNABIS RETAILER MEDICAL ENDORSEMENT"}},
	{"394", []string{"CANNABIS RETAILER"}},
	{"400", []string{"CANNABIS RETAILER WITH MEDICAL ENDORSEMENT"}},
	{"410", []string{"TRIBAL CANNABIS COMPACT"}},
	{"420", []string{"SPIRITS RETAIL LICENSE"}},
	{"430", []string{"SPIRITS RETAIL LICENSE - CONTRACT LIQUOR STORE"}},
	{"440", []string{"GROCERY STORE - SPIRITS"}},
	{"450", []string{"GROCERY STORE - BEER/WINE"}},
	{"460", []string{"BEER/WINE RESTAURANT"}},
	{"470", []string{"SPIRITS/BEER/WINE PRIVATE CLUB"}},
	{"480", []string{"MOBILE CATERER"}},
	{"490", []string{"BED AND BREAKFAST"}},
	{"500", []string{"GOLF COURSE"}},
	{"510", []string{"THEATER"}},
	{"520", []string{"BOWLING CENTER"}},
	{"530", []string{"RETAIL WINE SHOP"}},
	{"540", []string{"RETAIL SPIRITS SHOP"}},
	{"550", []string{"NONPROFIT HISTORICAL SOCIETY"}},
	{"560", []string{"PASSENGER VESSEL"}},
	{"570", []string{"AIRPORT LOUNGE"}},
	{"580", []string{"PRIVATE LODGE"}},
	{"590", []string{"VETERANS ORGANIZATION"}},
	{"600", []string{"PERFORMING ARTS CENTER"}},
	{"610", []string{"COMMUNITY THEATER"}},
}
