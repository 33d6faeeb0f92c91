// Package domain models NOAA weather observations and BTS on-time flight records.
//
// # Weather Data Source
//
// Weather rows come from the NOAA Integrated Surface Database (ISD) global-hourly
// CSV export for a single station (KBNA by default). Each mandatory data section
// is a comma-separated composite string whose first sub-field carries the value:
//
//	WND  "360,1,N,0050,1"   direction,quality,type,speed,quality
//	CIG  "22000,1,9,N"      ceiling height (m),quality,determination,CAVOK
//	VIS  "016093,1,9,9"     visibility (m),quality,variability,quality
//	TMP  "+0056,1"          air temperature (tenths of °C),quality
//	DEW  "-0011,1"          dew point (tenths of °C),quality
//	SLP  "10132,1"          sea level pressure (tenths of hPa),quality
//
// Missing values:
//
//	ISD pads unknown values with nines: "999" for wind direction, "99999" for
//	ceiling and pressure, "999999" for visibility and "+9999" for temperature
//	and dew point. A row carrying any of these sentinels is dropped before any
//	numeric decoding happens. See [DecodeWeather].
//
// Time format:
//
//	DATE is "YYYY-MM-DDTHH:MM:SS" without an offset. ISD reports in UTC, so the
//	value is taken as UTC verbatim.
//
// # Flight Data Source
//
// Flight rows come from the BTS Transtats "Reporting Carrier On-Time Performance"
// monthly CSV files:
//
//	FL_DATE        "1/1/2015 12:00:00 AM"  only the first token (the date) is used
//	CRS_DEP_TIME   "0630"                  scheduled departure, local wall clock, HHMM
//	ORIGIN         "BNA"                   IATA code, resolved through the airport table
//	WEATHER_DELAY  "15.00"                 minutes, empty when no delay was attributed
//
// Departure times are local to the origin airport. The airport's coordinates are
// resolved to an IANA zone and the wall time is converted to UTC so the flight
// series can be aligned with the weather series.
//
// # Congestion Score
//
// The congestion score of a flight is the trailing mean of the last N gaps
// (minutes) between consecutive scheduled departures. N is chosen once per run by
// a window search over the first 75% of the chronologically sorted flights.
package domain
