package export

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	elasticv7import "github.com/olivere/elastic/v7"
	"github.com/sirupsen/logrus"

	"github.com/pteich/elastic-frame/elastic"
	elasticv7 "github.com/pteich/elastic-frame/elastic/v7"
	elasticv8 "github.com/pteich/elastic-frame/elastic/v8"
	elasticv9 "github.com/pteich/elastic-frame/elastic/v9"
	"github.com/pteich/elastic-frame/flags"
)

type elasticClient struct {
	version   int
	transport elastic.Transport
	stop      func()
}

func (e *elasticClient) Stop() {
	if e.stop != nil {
		e.stop()
	}
}

func createClient(conf *flags.Flags, log *logrus.Logger) (*elasticClient, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: !conf.ElasticVerifySSL,
	}

	if conf.ElasticClientCrt != "" && conf.ElasticClientKey != "" {
		cert, err := tls.LoadX509KeyPair(conf.ElasticClientCrt, conf.ElasticClientKey)
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	tr := &http.Transport{
		TLSClientConfig: tlsCfg,
	}
	httpClient := &http.Client{Transport: tr}

	switch conf.ElasticVersion {
	case 7:
		logger := log.WithField("client", "olivere")
		esOpts := []elasticv7import.ClientOptionFunc{
			elasticv7.SetHttpClient(httpClient),
			elasticv7.SetURL(conf.ElasticURL),
			elasticv7.SetSniff(false),
			elasticv7.SetHealthcheckInterval(60 * time.Second),
			elasticv7.SetErrorLog(logger),
		}

		if conf.Trace {
			esOpts = append(esOpts, elasticv7.SetTraceLog(logger))
		}

		if conf.ElasticUser != "" && conf.ElasticPass != "" {
			esOpts = append(esOpts, elasticv7.SetBasicAuth(conf.ElasticUser, conf.ElasticPass))
		}

		client, err := elasticv7.NewClient(esOpts)
		if err != nil {
			return nil, err
		}
		return &elasticClient{version: 7, transport: client, stop: client.Stop}, nil

	case 8:
		cfg := elasticv8.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient)
		client, err := elasticv8.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return &elasticClient{version: 8, transport: traced(conf, log, client), stop: client.Stop}, nil

	case 9:
		cfg := elasticv9.NewConfig(conf.ElasticURL, conf.ElasticUser, conf.ElasticPass, httpClient)
		client, err := elasticv9.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return &elasticClient{version: 9, transport: traced(conf, log, client), stop: client.Stop}, nil

	default:
		return nil, errors.New("unsupported ElasticSearch version")
	}
}

// tracingTransport logs every round trip at debug level.
type tracingTransport struct {
	next elastic.Transport
	log  logrus.FieldLogger
}

func traced(conf *flags.Flags, log *logrus.Logger, t elastic.Transport) elastic.Transport {
	if !conf.Trace {
		return t
	}
	return &tracingTransport{next: t, log: log.WithField("client", "elasticsearch")}
}

func (t *tracingTransport) Perform(req *http.Request) (*http.Response, error) {
	start := time.Now()
	res, err := t.next.Perform(req)

	entry := t.log.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Debug("request failed")
		return res, err
	}
	entry.WithField("status", res.StatusCode).Debug("request done")
	return res, nil
}
