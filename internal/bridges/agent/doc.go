// Package agent drives remote hub agents over HTTP.
//
// An agent exposes the wire protocol as URL paths: every request is a GET
// of <uri><VERB>[/<arg>]* and every reply body is a brace token. The
// device URI therefore normally ends in a slash:
//
//	GET http://10.0.0.5:8080/SETSWITCH/1/1  ->  {1}
//	GET http://10.0.0.5:8080/MARCO          ->  {POLO}
package agent
